package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/scamwatch/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, samples []int, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   samples,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

func TestWAVSource_ReadsThenSilence(t *testing.T) {
	path := writeTestWAV(t, []int{100, -200, 300}, audio.SampleRate, 1)
	src, err := NewWAVSourceFactory(path, false).Open(context.Background(), audio.DefaultFormat())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	buf := make([]byte, 8)
	n, err := src.ReadFrame(buf)
	if err != nil || n != 8 {
		t.Fatalf("expected full frame, got n=%d err=%v", n, err)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[2:])); got != -200 {
		t.Fatalf("expected second sample -200, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[6:])); got != 0 {
		t.Fatalf("expected zero padding, got %d", got)
	}
	if _, err := src.ReadFrame(buf); err != nil {
		t.Fatalf("expected silence after eof, got %v", err)
	}
}

func TestWAVSource_DownmixesStereo(t *testing.T) {
	path := writeTestWAV(t, []int{100, 300, -100, -300}, audio.SampleRate, 2)
	src, err := NewWAVSourceFactory(path, false).Open(context.Background(), audio.DefaultFormat())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	buf := make([]byte, 4)
	if _, err := src.ReadFrame(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[0:])); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[2:])); got != -200 {
		t.Fatalf("expected -200, got %d", got)
	}
}

func TestWAVSource_RejectsSampleRate(t *testing.T) {
	path := writeTestWAV(t, []int{1, 2}, 44100, 1)
	if _, err := NewWAVSourceFactory(path, false).Open(context.Background(), audio.DefaultFormat()); err == nil {
		t.Fatal("expected sample rate mismatch error")
	}
}

func TestWAVSource_CloseUnblocksRealtimeRead(t *testing.T) {
	path := writeTestWAV(t, make([]int, 16000), audio.SampleRate, 1)
	src, err := NewWAVSourceFactory(path, true).Open(context.Background(), audio.DefaultFormat())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	buf := make([]byte, 3200)
	if _, err := src.ReadFrame(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = src.Close()
	}()
	if _, err := src.ReadFrame(buf); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}

func TestCaptureBuffer_ReadBlocksUntilFull(t *testing.T) {
	b := newCaptureBuffer(0)
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		if _, err := b.read(buf); err != nil {
			done <- nil
			return
		}
		done <- buf
	}()
	b.write([]byte{1, 2})
	b.write([]byte{3, 4, 5, 6})
	select {
	case got := <-done:
		if len(got) != 4 || got[0] != 1 || got[3] != 4 {
			t.Fatalf("unexpected frame %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not complete")
	}
}

func TestCaptureBuffer_DropsOldestOverLimit(t *testing.T) {
	b := newCaptureBuffer(4)
	b.write([]byte{1, 2, 3, 4, 5, 6})
	buf := make([]byte, 4)
	if _, err := b.read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf[0] != 3 {
		t.Fatalf("expected oldest bytes dropped, got %v", buf)
	}
}

func TestCaptureBuffer_CloseUnblocks(t *testing.T) {
	b := newCaptureBuffer(0)
	errCh := make(chan error, 1)
	go func() {
		_, err := b.read(make([]byte, 4))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSourceClosed) {
			t.Fatalf("expected ErrSourceClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read was not unblocked")
	}
}

func TestCaptureBuffer_FailReportsDeviceError(t *testing.T) {
	b := newCaptureBuffer(0)
	errCh := make(chan error, 1)
	go func() {
		_, err := b.read(make([]byte, 4))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.fail(ErrDeviceStopped)
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDeviceStopped) {
			t.Fatalf("expected ErrDeviceStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("read was not unblocked")
	}

	b.close()
	if _, err := b.read(make([]byte, 4)); !errors.Is(err, ErrDeviceStopped) {
		t.Fatalf("close after fail must keep the device error, got %v", err)
	}
}
