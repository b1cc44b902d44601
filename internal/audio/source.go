package audio

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	FrameDuration  = 100 * time.Millisecond

	// RMSScale maps a frame RMS to a 0..1 loudness level.
	RMSScale = 2000.0

	DecibelFloor   = -2.0
	DecibelCeiling = 10.0
)

// Format describes 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{SampleRate: SampleRate, Channels: Channels}
}

func (f Format) FrameBytes(d time.Duration) int {
	return int(int64(f.SampleRate)*int64(f.Channels)*BytesPerSample*int64(d)/int64(time.Second)) &^ 1
}

func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := n / (BytesPerSample * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Source delivers PCM frames. ReadFrame blocks until buf is full or the
// source is closed; Close unblocks pending reads.
type Source interface {
	ReadFrame(buf []byte) (int, error)
	Close() error
}

type SourceFactory interface {
	Open(ctx context.Context, format Format) (Source, error)
}

// RMS of little-endian int16 samples.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

func LevelFromRMS(pcm []byte, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	return clamp01(RMS(pcm) / scale)
}

// LevelFromDecibels linearly maps db from [floor, ceil] into 0..1.
func LevelFromDecibels(db, floor, ceil float64) float64 {
	if ceil <= floor {
		return 0
	}
	return clamp01((db - floor) / (ceil - floor))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
