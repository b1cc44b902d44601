package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcmOf(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestFormat_FrameBytes(t *testing.T) {
	if got := DefaultFormat().FrameBytes(FrameDuration); got != 3200 {
		t.Fatalf("expected 3200 bytes per 100ms frame, got %d", got)
	}
	if got := DefaultFormat().Duration(3200); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %v", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
	got := RMS(pcmOf(1000, -1000, 1000, -1000))
	if math.Abs(got-1000) > 1e-9 {
		t.Fatalf("expected 1000, got %v", got)
	}
}

func TestLevelFromRMS_Clamped(t *testing.T) {
	if got := LevelFromRMS(pcmOf(1000, -1000), RMSScale); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := LevelFromRMS(pcmOf(30000, -30000), RMSScale); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
	if got := LevelFromRMS(pcmOf(0, 0), RMSScale); got != 0 {
		t.Fatalf("expected 0 for silence, got %v", got)
	}
}

func TestLevelFromDecibels(t *testing.T) {
	cases := map[float64]float64{
		-10: 0,
		-2:  0,
		4:   0.5,
		10:  1,
		20:  1,
	}
	for db, want := range cases {
		if got := LevelFromDecibels(db, DecibelFloor, DecibelCeiling); math.Abs(got-want) > 1e-9 {
			t.Fatalf("db=%v: expected %v, got %v", db, want, got)
		}
	}
}
