//go:build !linux

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/gen2brain/malgo"
)

type MalgoSourceFactory struct{}

func NewCaptureFactory() audio.SourceFactory {
	return &MalgoSourceFactory{}
}

func (f *MalgoSourceFactory) Open(_ context.Context, format audio.Format) (audio.Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)

	buf := newCaptureBuffer(format.FrameBytes(audio.FrameDuration) * 50)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			buf.write(data)
		},
		Stop: func() {
			buf.fail(ErrDeviceStopped)
		},
	}
	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	return &malgoSource{ctx: mctx, device: dev, buf: buf}, nil
}

type malgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	buf    *captureBuffer
	once   sync.Once
}

func (s *malgoSource) ReadFrame(buf []byte) (int, error) {
	return s.buf.read(buf)
}

func (s *malgoSource) Close() error {
	var err error
	s.once.Do(func() {
		s.buf.close()
		_ = s.device.Stop()
		s.device.Uninit()
		err = s.ctx.Uninit()
		s.ctx.Free()
	})
	return err
}
