package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/go-audio/wav"
)

// WAVSourceFactory replays a 16-bit PCM WAV file as if it were a
// microphone. After the file is exhausted it keeps producing silence.
type WAVSourceFactory struct {
	path     string
	realtime bool
}

func NewWAVSourceFactory(path string, realtime bool) *WAVSourceFactory {
	return &WAVSourceFactory{path: path, realtime: realtime}
}

func (f *WAVSourceFactory) Open(_ context.Context, format audio.Format) (audio.Source, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", f.path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("wav bit depth must be 16, got %d", dec.BitDepth)
	}
	if int(dec.SampleRate) != format.SampleRate {
		return nil, fmt.Errorf("wav sample rate must be %d, got %d", format.SampleRate, dec.SampleRate)
	}

	chans := int(dec.NumChans)
	if chans <= 0 {
		chans = 1
	}
	frames := len(buf.Data) / chans
	pcm := make([]byte, frames*format.Channels*audio.BytesPerSample)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < chans; c++ {
			sum += buf.Data[i*chans+c]
		}
		s := int16(sum / chans)
		for c := 0; c < format.Channels; c++ {
			binary.LittleEndian.PutUint16(pcm[(i*format.Channels+c)*2:], uint16(s))
		}
	}

	return &wavSource{
		pcm:      pcm,
		format:   format,
		realtime: f.realtime,
		done:     make(chan struct{}),
	}, nil
}

type wavSource struct {
	pcm      []byte
	pos      int
	format   audio.Format
	realtime bool
	next     time.Time

	done chan struct{}
	once sync.Once
}

func (s *wavSource) ReadFrame(buf []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrSourceClosed
	default:
	}
	if s.realtime {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		if wait := s.next.Sub(now); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.done:
				timer.Stop()
				return 0, ErrSourceClosed
			case <-timer.C:
			}
		}
		s.next = s.next.Add(s.format.Duration(len(buf)))
	}

	n := copy(buf, s.pcm[s.pos:])
	s.pos += n
	clear(buf[n:])
	return len(buf), nil
}

func (s *wavSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
