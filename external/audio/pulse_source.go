//go:build linux

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/jfreymuth/pulse"
)

const streamCheckInterval = 250 * time.Millisecond

type PulseSourceFactory struct{}

func NewCaptureFactory() audio.SourceFactory {
	return &PulseSourceFactory{}
}

func (f *PulseSourceFactory) Open(_ context.Context, format audio.Format) (audio.Source, error) {
	if format.Channels != 1 {
		return nil, fmt.Errorf("pulse capture supports mono only, got %d channels", format.Channels)
	}
	client, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}

	buf := newCaptureBuffer(format.FrameBytes(audio.FrameDuration) * 50)
	writer := pulse.Int16Writer(func(samples []int16) (int, error) {
		if len(samples) == 0 {
			return 0, nil
		}
		data := make([]byte, len(samples)*2)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		buf.write(data)
		return len(samples), nil
	})

	stream, err := client.NewRecord(writer,
		pulse.RecordMono,
		pulse.RecordSampleRate(format.SampleRate),
		pulse.RecordLatency(0.05),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	src := &pulseSource{client: client, stream: stream, buf: buf, done: make(chan struct{})}
	go src.watch()
	return src, nil
}

type pulseSource struct {
	client *pulse.Client
	stream *pulse.RecordStream
	buf    *captureBuffer
	done   chan struct{}
	once   sync.Once
}

// watch fails pending reads once the record stream stops without Close,
// e.g. when the server goes away or the device is removed.
func (s *pulseSource) watch() {
	ticker := time.NewTicker(streamCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.stream.Running() {
				continue
			}
			err := s.stream.Error()
			if err == nil {
				err = ErrDeviceStopped
			}
			s.buf.fail(fmt.Errorf("pulse record stream stopped: %w", err))
			return
		}
	}
}

func (s *pulseSource) ReadFrame(buf []byte) (int, error) {
	return s.buf.read(buf)
}

func (s *pulseSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.buf.close()
		s.stream.Stop()
		s.stream.Close()
		s.client.Close()
	})
	return nil
}
