package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foxseedlab/scamwatch/internal/output"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

var errAmbiguousID = errors.New("id prefix matches more than one transcript")

func NewCheckCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "check <text>",
		Short: "Add a transcript by hand and evaluate it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			rec, err := deps.Store.Insert(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			deps.settle()
			printLatest(deps, formatter, rec.ID)
			return nil
		},
	}
}

func NewHistoryCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List stored transcripts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			records := deps.Store.Snapshot()
			if len(records) == 0 {
				formatter.Info("No transcripts found")
				return nil
			}
			formatter.HistoryHeader(len(records))
			for _, rec := range records {
				formatter.HistoryItem(rec)
			}
			if top, ok := deps.Trigger.Highest(); ok {
				formatter.HighestRisk(top)
			}
			return nil
		},
	}
}

func NewEditCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace a transcript's text and evaluate it again",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			id, err := resolveID(deps.Store, args[0])
			if err != nil {
				return err
			}
			if _, err := deps.Store.UpdateText(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			deps.settle()
			printLatest(deps, formatter, id)
			return nil
		},
	}
}

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			id, err := resolveID(deps.Store, args[0])
			if err != nil {
				return err
			}
			if err := deps.Store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			formatter.Success(fmt.Sprintf("Deleted %s", output.ShortID(id)))
			return nil
		},
	}
}

func NewClearCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			if err := deps.Store.Clear(cmd.Context()); err != nil {
				return err
			}
			formatter.Success("History cleared")
			return nil
		},
	}
}

func NewCombineCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "combine <id>...",
		Short: "Merge transcripts into one, oldest first, and evaluate the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id, err := resolveID(deps.Store, arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			rec, err := deps.Store.Combine(cmd.Context(), ids)
			if err != nil {
				return err
			}
			deps.settle()
			printLatest(deps, formatter, rec.ID)
			return nil
		},
	}
}

// resolveID accepts a full id or a unique prefix of one, as printed by
// history.
func resolveID(store *transcript.Store, arg string) (string, error) {
	if arg == "" {
		return "", transcript.ErrNotFound
	}
	if _, ok := store.Get(arg); ok {
		return arg, nil
	}
	var match string
	for _, rec := range store.Snapshot() {
		if !strings.HasPrefix(rec.ID, arg) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", errAmbiguousID, arg)
		}
		match = rec.ID
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", transcript.ErrNotFound, arg)
	}
	return match, nil
}

func printLatest(deps *Dependencies, formatter *output.Formatter, id string) {
	rec, ok := deps.Store.Get(id)
	if !ok {
		return
	}
	formatter.Transcript(rec)
}
