package transcript

import (
	"context"
	"time"

	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/repository"
	"github.com/samber/do/v2"
)

const loadTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.StoreDriver == config.StoreDriverMemory {
			return NewStore(), nil
		}
		repo, err := do.Invoke[repository.Repository](i)
		if err != nil {
			return nil, err
		}
		s := NewStore(WithRepository(repo))
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if err := s.Load(ctx); err != nil {
			return nil, err
		}
		return s, nil
	})
}
