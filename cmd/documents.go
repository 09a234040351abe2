package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage indexed documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApplication()
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.store.Summaries(cmd.Context(), a.config.Owner)
		if err != nil {
			return err
		}
		return writeSummaries(cmd.OutOrStdout(), summaries)
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication()
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.store.GetDocument(cmd.Context(), a.config.Owner, args[0])
		if err != nil {
			return fmt.Errorf("document %s: %w", args[0], err)
		}

		if ok, err := confirm(cmd, fmt.Sprintf("Delete %q (%s)", doc.Name, doc.ID)); err != nil || !ok {
			return err
		}

		if err := a.store.DeleteDocument(cmd.Context(), a.config.Owner, doc.ID); err != nil {
			return err
		}
		a.logger.Info("document deleted", zap.String("document", doc.ID))
		return nil
	},
}

var documentsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document of the owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApplication()
		if err != nil {
			return err
		}
		defer a.Close()

		if ok, err := confirm(cmd, fmt.Sprintf("Delete all documents of %q", a.config.Owner)); err != nil || !ok {
			return err
		}

		n, err := a.store.DeleteOwner(cmd.Context(), a.config.Owner)
		if err != nil {
			return err
		}
		a.logger.Info("documents deleted", zap.Int("count", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd, documentsDeleteCmd, documentsClearCmd)

	for _, c := range []*cobra.Command{documentsDeleteCmd, documentsClearCmd} {
		c.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	}
}

// confirm asks before a destructive action unless --yes is set. A declined
// prompt is not an error.
func confirm(cmd *cobra.Command, label string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}

	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func writeSummaries(w io.Writer, summaries []store.DocumentSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tCHUNKS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime), s.ChunkCount)
	}
	return tw.Flush()
}
