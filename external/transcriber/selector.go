package transcriber

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
)

// BackendSelector builds the backend for a provider selection. The native
// engine is shared across sessions so its gRPC client is reused.
type BackendSelector struct {
	cfg        *config.Config
	sources    audio.SourceFactory
	httpClient *http.Client

	mu     sync.Mutex
	engine transcriber.Engine
}

func NewBackendSelector(cfg *config.Config, sources audio.SourceFactory, httpClient *http.Client) *BackendSelector {
	return &BackendSelector{cfg: cfg, sources: sources, httpClient: httpClient}
}

func (s *BackendSelector) Backend(provider config.ASRProvider) (transcriber.Backend, error) {
	switch provider.ID {
	case config.ASRProviderNative:
		return transcriber.NewNativeBackend(s.nativeEngine()), nil
	case config.ASRProviderStreaming:
		return NewStreamingBackend(StreamingConfig{
			TokenURL:   s.cfg.StreamingTokenURL,
			WSURL:      s.cfg.StreamingWSURL,
			APIKey:     provider.APIKey,
			HTTPClient: s.httpClient,
		}, s.sources), nil
	default:
		return nil, fmt.Errorf("unknown asr provider %q", provider.ID)
	}
}

func (s *BackendSelector) nativeEngine() transcriber.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = NewCloudSpeechEngine(CloudSpeechConfig{
			ProjectID:       s.cfg.GoogleCloudProjectID,
			CredentialsJSON: s.cfg.GoogleCloudCredentialsJSON,
			Location:        s.cfg.GoogleCloudSpeechLocation,
			Model:           s.cfg.GoogleCloudSpeechModel,
		}, s.sources)
	}
	return s.engine
}

// Close releases the shared native engine, if one was built.
func (s *BackendSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engine.(*CloudSpeechEngine); ok {
		return e.Close()
	}
	return nil
}
