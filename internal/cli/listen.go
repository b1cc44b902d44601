package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/output"
	"github.com/foxseedlab/scamwatch/internal/session"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

const listenHelp = "commands: start, stop, lang, level, quit"

// syncWriter serializes output from the event goroutines and the prompt.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func NewListenCmd(deps *Dependencies) *cobra.Command {
	var language, asr string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe the microphone and evaluate every utterance",
		Long:  "Start a recognition session and print partial text, final transcripts, risk scores and advice as they arrive.\nType start, stop, lang, level or quit followed by Enter to control the session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if language != "" && language != config.LanguageTraditionalChinese && language != config.LanguageEnglish {
				return fmt.Errorf("unsupported language %q", language)
			}
			if asr != "" && asr != config.ASRProviderNative && asr != config.ASRProviderStreaming {
				return fmt.Errorf("unsupported recognition provider %q", asr)
			}
			ctrl, err := deps.Session()
			if err != nil {
				return err
			}
			if asr != "" {
				ctrl.SetProvider(config.ASRProvider{ID: asr, APIKey: deps.Config.Providers.ASR.APIKey})
			}
			if language != "" {
				if err := ctrl.SetLanguage(language); err != nil {
					return err
				}
			}
			out := &syncWriter{w: cmd.OutOrStdout()}
			return runListen(cmd.Context(), deps, ctrl, cmd.InOrStdin(), output.NewFormatter(out))
		},
	}

	cmd.Flags().StringVarP(&language, "lang", "l", "", "Recognition language (zh-TW or en-US)")
	cmd.Flags().StringVar(&asr, "asr", "", "Recognition provider for this session (native or streaming)")

	return cmd
}

func runListen(ctx context.Context, deps *Dependencies, ctrl *session.Controller, in io.Reader, formatter *output.Formatter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var printing atomic.Bool
	printing.Store(true)
	deps.Store.OnChange(func(ev transcript.Event) {
		if !printing.Load() {
			return
		}
		switch ev.Kind {
		case transcript.EventInserted, transcript.EventRiskUpdated, transcript.EventAdviceUpdated:
			formatter.Transcript(ev.Record)
		}
	})
	defer printing.Store(false)

	var wg sync.WaitGroup
	defer wg.Wait()
	states, unsubState := ctrl.SubscribeState()
	defer unsubState()
	partials, unsubPartial := ctrl.SubscribePartial()
	defer unsubPartial()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-states:
				if !ok {
					return
				}
				formatter.SessionState(s, ctrl.Language())
			case p, ok := <-partials:
				if !ok {
					return
				}
				formatter.Partial(p)
			}
		}
	}()

	formatter.Info(listenHelp)
	if err := ctrl.Start(); err != nil {
		formatter.Error(fmt.Sprintf("start failed: %v", err))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return shutdown(deps, ctrl, cancel)
		case line, ok := <-lines:
			if !ok {
				return shutdown(deps, ctrl, cancel)
			}
			if quit := handleLine(ctrl, formatter, line); quit {
				return shutdown(deps, ctrl, cancel)
			}
		}
	}
}

func handleLine(ctrl *session.Controller, formatter *output.Formatter, line string) bool {
	switch line {
	case "":
	case "start":
		if err := ctrl.Start(); err != nil {
			formatter.Error(fmt.Sprintf("start failed: %v", err))
		}
	case "stop":
		if err := ctrl.Stop(); err != nil {
			formatter.Error(fmt.Sprintf("stop failed: %v", err))
		}
	case "lang":
		next, err := ctrl.ToggleLanguage()
		if err != nil {
			formatter.Error(fmt.Sprintf("language change failed: %v", err))
			break
		}
		formatter.Info("language: " + next)
	case "level":
		formatter.Loudness(ctrl.Loudness())
	case "quit", "exit":
		return true
	default:
		formatter.Warning(listenHelp)
	}
	return false
}

func shutdown(deps *Dependencies, ctrl *session.Controller, cancel context.CancelFunc) error {
	err := ctrl.Stop()
	deps.settle()
	cancel()
	if msg := ctrl.LastError(); msg != "" {
		return fmt.Errorf("session ended with error: %s", msg)
	}
	return err
}
