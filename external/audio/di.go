package audio

import (
	"log/slog"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.SourceFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.AudioWAVPath != "" {
			slog.Info("audio source: replaying wav file", "path", c.AudioWAVPath)
			return NewWAVSourceFactory(c.AudioWAVPath, true), nil
		}
		return NewCaptureFactory(), nil
	})
}
