package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/foxseedlab/scamwatch/internal/alert"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/risk"
	"github.com/foxseedlab/scamwatch/internal/session"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/foxseedlab/scamwatch/internal/version"
)

// Dependencies are resolved before the command tree is built, except the
// session controller, which opens audio and recognition resources and is
// only needed by listen.
type Dependencies struct {
	Config   *config.Config
	Store    *transcript.Store
	Pipeline *risk.Pipeline
	Trigger  *alert.Trigger
	Session  func() (*session.Controller, error)
	// UseAdvisor switches risk evaluation to a named advisory preset.
	UseAdvisor func(name string) error
}

// settle waits for risk evaluations and the alerts they caused.
func (d *Dependencies) settle() {
	d.Pipeline.Wait()
	d.Trigger.Wait()
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var advisor string

	rootCmd := &cobra.Command{
		Use:           "scamwatch",
		Short:         "Transcribe phone calls and flag scam risk",
		Long:          "Listens to the microphone, transcribes speech, scores every transcript for scam risk and generates advice for risky ones.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if advisor == "" {
				return nil
			}
			if deps.UseAdvisor == nil {
				return errors.New("advisory presets are not available")
			}
			return deps.UseAdvisor(advisor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&advisor, "advisor", "", "Advisory preset name from PROVIDERS_FILE")

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewListenCmd(deps))
	rootCmd.AddCommand(NewCheckCmd(deps))
	rootCmd.AddCommand(NewHistoryCmd(deps))
	rootCmd.AddCommand(NewEditCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewClearCmd(deps))
	rootCmd.AddCommand(NewCombineCmd(deps))

	return rootCmd
}
