package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
	"nhooyr.io/websocket"
)

const (
	pipelineEnglish = "asr-en-std"
	pipelineMixed   = "asr-zh-en-std"
	maxTokenBody    = 64 << 10
)

type StreamingConfig struct {
	TokenURL   string
	WSURL      string
	APIKey     string
	HTTPClient *http.Client
}

type tokenRequest struct {
	Pipeline string `json:"pipeline"`
}

type tokenResponse struct {
	AuthToken string `json:"auth_token"`
}

type streamMessage struct {
	Pipe *struct {
		Sentence string `json:"asr_sentence"`
		Final    bool   `json:"asr_final"`
	} `json:"pipe"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// StreamingBackend fetches a short-lived token, opens a websocket with it
// and pushes raw PCM frames while reading transcript messages back.
type StreamingBackend struct {
	tokenURL string
	wsURL    string
	apiKey   string
	client   *http.Client
	sources  audio.SourceFactory
	format   audio.Format

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	conn    *websocket.Conn
	src     audio.Source
	closing atomic.Bool

	level atomic.Uint64
}

func NewStreamingBackend(cfg StreamingConfig, sources audio.SourceFactory) *StreamingBackend {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &StreamingBackend{
		tokenURL: cfg.TokenURL,
		wsURL:    cfg.WSURL,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		client:   client,
		sources:  sources,
		format:   audio.DefaultFormat(),
	}
}

func (b *StreamingBackend) Name() string { return config.ASRProviderStreaming }

func (b *StreamingBackend) Loudness() float64 {
	return math.Float64frombits(b.level.Load())
}

func (b *StreamingBackend) setLevel(v float64) {
	b.level.Store(math.Float64bits(v))
}

func (b *StreamingBackend) Start(ctx context.Context, opts transcriber.StartOptions, r transcriber.Receiver) error {
	if b.apiKey == "" {
		return &transcriber.AuthError{Reason: "streaming api key is not set"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return transcriber.ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel, b.done = cancel, done
	b.closing.Store(false)
	go func() {
		defer close(done)
		b.run(runCtx, opts.Language, r)
	}()
	return nil
}

// Stop closes the channel with a normal closure and releases the source.
// No OnClosed is delivered for a stop.
func (b *StreamingBackend) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	conn, src := b.conn, b.src
	b.cancel, b.done = nil, nil
	b.closing.Store(true)
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	if src != nil {
		_ = src.Close()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	cancel()
	<-done
	b.setLevel(0)
	return nil
}

func pipelineFor(language string) string {
	if language == config.LanguageEnglish {
		return pipelineEnglish
	}
	return pipelineMixed
}

func (b *StreamingBackend) run(ctx context.Context, language string, r transcriber.Receiver) {
	token, err := b.fetchToken(ctx, pipelineFor(language))
	if err != nil {
		if b.stopped(ctx) {
			return
		}
		slog.Error("streaming token fetch failed", "error", err)
		r.OnClosed(err)
		return
	}

	conn, _, err := websocket.Dial(ctx, b.channelURL(token), nil)
	if err != nil {
		if b.stopped(ctx) {
			return
		}
		slog.Error("streaming channel open failed", "error", err)
		r.OnClosed(&transcriber.ChannelError{Err: err})
		return
	}
	conn.SetReadLimit(1 << 20)

	src, err := b.sources.Open(ctx, b.format)
	if err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if b.stopped(ctx) {
			return
		}
		r.OnClosed(&transcriber.AudioInitError{Err: err})
		return
	}

	b.mu.Lock()
	if b.closing.Load() {
		b.mu.Unlock()
		_ = src.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	b.conn, b.src = conn, src
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.conn, b.src = nil, nil
		b.mu.Unlock()
		_ = src.Close()
	}()

	slog.Info("streaming channel open", "pipeline", pipelineFor(language))
	r.OnReady()

	var released atomic.Bool
	sendErr := make(chan error, 1)
	go func() {
		err := b.sendLoop(ctx, conn, src, r, &released)
		if err != nil {
			_ = conn.CloseNow()
		}
		sendErr <- err
	}()

	err = b.receiveLoop(ctx, conn, r)
	released.Store(true)
	_ = src.Close()
	sErr := <-sendErr
	b.setLevel(0)

	if b.stopped(ctx) {
		return
	}
	var audioErr *transcriber.AudioInitError
	if errors.As(sErr, &audioErr) {
		slog.Error("microphone read failed", "error", sErr)
		r.OnClosed(sErr)
		return
	}
	if err == nil {
		err = sErr
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		slog.Info("streaming channel closed by server")
		r.OnClosed(nil)
		return
	}
	slog.Error("streaming channel failed", "error", err)
	r.OnClosed(channelError(err))
}

func (b *StreamingBackend) stopped(ctx context.Context) bool {
	return b.closing.Load() || ctx.Err() != nil
}

func (b *StreamingBackend) channelURL(token string) string {
	u, err := url.Parse(b.wsURL)
	if err != nil {
		return b.wsURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *StreamingBackend) fetchToken(ctx context.Context, pipeline string) (string, error) {
	body, err := json.Marshal(tokenRequest{Pipeline: pipeline})
	if err != nil {
		return "", &transcriber.AuthError{Reason: "encode token request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", &transcriber.AuthError{Reason: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &transcriber.AuthError{Reason: "token request failed", Err: err}
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &transcriber.AuthError{Reason: fmt.Sprintf("token endpoint status %d", resp.StatusCode)}
	}
	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", &transcriber.AuthError{Reason: "decode token response", Err: err}
	}
	if tr.AuthToken == "" {
		return "", &transcriber.AuthError{Reason: "token response has no auth_token"}
	}
	return tr.AuthToken, nil
}

// sendLoop streams frames until the source fails. A read failure after
// released is set, or after a user stop, is the normal end of the loop.
func (b *StreamingBackend) sendLoop(ctx context.Context, conn *websocket.Conn, src audio.Source, r transcriber.Receiver, released *atomic.Bool) error {
	frame := make([]byte, b.format.FrameBytes(audio.FrameDuration))
	for {
		n, err := src.ReadFrame(frame)
		if err != nil {
			if released.Load() || b.stopped(ctx) {
				return nil
			}
			return &transcriber.AudioInitError{Err: err}
		}
		level := audio.LevelFromRMS(frame[:n], audio.RMSScale)
		b.setLevel(level)
		r.OnLoudness(level)
		if err := conn.Write(ctx, websocket.MessageBinary, frame[:n]); err != nil {
			return err
		}
	}
}

func (b *StreamingBackend) receiveLoop(ctx context.Context, conn *websocket.Conn, r transcriber.Receiver) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("streaming message is not json", "error", err)
			continue
		}
		switch {
		case msg.Pipe != nil:
			if msg.Pipe.Final {
				if strings.TrimSpace(msg.Pipe.Sentence) != "" {
					r.OnFinal(msg.Pipe.Sentence)
				}
			} else {
				r.OnPartial(msg.Pipe.Sentence)
			}
		case msg.Status == "error":
			slog.Warn("streaming server reported error", "detail", msg.Detail)
		}
	}
}

func channelError(err error) error {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return &transcriber.ChannelError{Code: int(ce.Code), Reason: ce.Reason, Err: err}
	}
	return &transcriber.ChannelError{Err: err}
}
