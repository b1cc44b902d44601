package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

const (
	speechAPIEndpointPort = 443
	speechStartTimeout    = 5 * time.Second
	speechEndTimeout      = 1200 * time.Millisecond

	// decibelReferenceRMS is the frame RMS reported as 0 dB.
	decibelReferenceRMS = 200.0
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// CloudSpeechEngine recognizes one utterance per stream. Voice activity
// timeouts make the server end the stream after silence, which gives the
// same one-shot behavior as a platform recognizer.
type CloudSpeechEngine struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
	sources         audio.SourceFactory
	format          audio.Format

	mu     sync.Mutex
	client *speech.Client
	open   streamOpener
}

func NewCloudSpeechEngine(cfg CloudSpeechConfig, sources audio.SourceFactory) *CloudSpeechEngine {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	return &CloudSpeechEngine{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
		sources:         sources,
		format:          audio.DefaultFormat(),
	}
}

func (e *CloudSpeechEngine) opener(ctx context.Context) (streamOpener, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != nil {
		return e.open, nil
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(e.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if e.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", e.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	e.client = client
	e.open = func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}
	return e.open, nil
}

func (e *CloudSpeechEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client, e.open = nil, nil
	return err
}

func (e *CloudSpeechEngine) Recognize(ctx context.Context, language string, l transcriber.EngineListener) (string, error) {
	open, err := e.opener(ctx)
	if err != nil {
		return "", &transcriber.EngineError{Code: transcriber.EngineOther, Err: err}
	}

	src, err := e.sources.Open(ctx, e.format)
	if err != nil {
		return "", &transcriber.AudioInitError{Err: err}
	}
	defer src.Close()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := open(streamCtx)
	if err != nil {
		return "", classifyStreamError(err)
	}
	if err := stream.Send(e.configRequest(language)); err != nil {
		return "", classifyStreamError(err)
	}
	l.OnReadyForSpeech()

	recvDone := make(chan struct{})
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		e.pump(stream, src, l, recvDone)
	}()

	text, err := e.receive(stream, l)
	close(recvDone)
	_ = src.Close()
	<-pumpDone

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return text, err
}

func (e *CloudSpeechEngine) configRequest(language string) *speechpb.StreamingRecognizeRequest {
	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", e.projectID, e.location)
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         e.model,
					LanguageCodes: []string{language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(e.format.SampleRate),
							AudioChannelCount: int32(e.format.Channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults:            true,
					EnableVoiceActivityEvents: true,
					VoiceActivityTimeout: &speechpb.StreamingRecognitionFeatures_VoiceActivityTimeout{
						SpeechStartTimeout: durationpb.New(speechStartTimeout),
						SpeechEndTimeout:   durationpb.New(speechEndTimeout),
					},
				},
			},
		},
	}
}

func (e *CloudSpeechEngine) pump(stream speechpb.Speech_StreamingRecognizeClient, src audio.Source, l transcriber.EngineListener, stop <-chan struct{}) {
	defer func() { _ = stream.CloseSend() }()
	frame := make([]byte, e.format.FrameBytes(audio.FrameDuration))
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := src.ReadFrame(frame)
		if err != nil {
			return
		}
		l.OnLevel(frameDecibels(frame[:n]))
		req := &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
				Audio: append([]byte(nil), frame[:n]...),
			},
		}
		if err := stream.Send(req); err != nil {
			return
		}
	}
}

func (e *CloudSpeechEngine) receive(stream speechpb.Speech_StreamingRecognizeClient, l transcriber.EngineListener) (string, error) {
	var (
		begun  bool
		finals []string
	)
	result := func() (string, error) {
		if len(finals) > 0 {
			return strings.Join(finals, ""), nil
		}
		if !begun {
			return "", &transcriber.EngineError{Code: transcriber.EngineTimeout}
		}
		return "", &transcriber.EngineError{Code: transcriber.EngineNoMatch}
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || isStreamDurationLimit(err) {
				return result()
			}
			return "", classifyStreamError(err)
		}
		switch resp.GetSpeechEventType() {
		case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_BEGIN:
			begun = true
		case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END:
			slog.Debug("cloud speech activity ended", "finals", len(finals))
		}

		var interim strings.Builder
		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			text := r.GetAlternatives()[0].GetTranscript()
			if r.GetIsFinal() {
				if strings.TrimSpace(text) != "" {
					begun = true
					finals = append(finals, text)
				}
				continue
			}
			interim.WriteString(text)
		}
		if interim.Len() > 0 {
			begun = true
			l.OnPartial(strings.Join(finals, "") + interim.String())
		}
	}
}

func classifyStreamError(err error) error {
	st, ok := status.FromError(err)
	if ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable:
			return &transcriber.EngineError{Code: transcriber.EngineBusy, Err: err}
		case codes.Canceled:
			return err
		}
	}
	return &transcriber.EngineError{Code: transcriber.EngineOther, Err: err}
}

func isStreamDurationLimit(err error) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}

func frameDecibels(pcm []byte) float64 {
	rms := audio.RMS(pcm)
	if rms <= 0 {
		return audio.DecibelFloor
	}
	return 10 * math.Log10(rms/decibelReferenceRMS)
}
