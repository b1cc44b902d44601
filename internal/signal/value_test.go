package signal

import "testing"

func TestValue_GetSet(t *testing.T) {
	v := New("")
	v.Set("hello")
	if got := v.Get(); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestValue_SubscribeReceivesInitial(t *testing.T) {
	v := New(3)
	ch, cancel := v.Subscribe()
	defer cancel()
	if got := <-ch; got != 3 {
		t.Fatalf("expected initial 3, got %d", got)
	}
}

func TestValue_SubscriberCoalescesToLatest(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	defer cancel()
	<-ch
	v.Set(1)
	v.Set(2)
	v.Set(3)
	if got := <-ch; got != 3 {
		t.Fatalf("expected latest value 3, got %d", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("expected no pending value, got %d", got)
	default:
	}
}

func TestValue_CancelClosesChannel(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	v.Set(5)
}
