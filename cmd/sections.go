package cmd

import (
	"fmt"

	"github.com/kenzatoreis/hiringbuddy/internal/sections"
	"github.com/spf13/cobra"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections ID",
	Short: "Print a heading block (SKILLS by default) of an indexed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, _ := cmd.Flags().GetStringSlice("label")
		if len(labels) == 0 {
			labels = sections.SkillsLabels
		}

		a, err := newApplication()
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.store.GetDocument(cmd.Context(), a.config.Owner, args[0])
		if err != nil {
			return fmt.Errorf("document %s: %w", args[0], err)
		}

		locator := sections.NewHeadingLocator()
		if skills, _ := cmd.Flags().GetBool("skills"); skills {
			limit, _ := cmd.Flags().GetInt("max-skills")
			return printJSON(cmd.OutOrStdout(), sections.SkillTokens(locator, doc.Text, limit))
		}

		block := sections.Extract(locator, doc.Text, labels...)
		if block == "" {
			return fmt.Errorf("no %v section in %s", labels, doc.ID)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), block)
		return err
	},
}

func init() {
	rootCmd.AddCommand(sectionsCmd)

	sectionsCmd.Flags().StringSlice("label", nil, "heading to extract, repeatable (default SKILLS, TECHNICAL SKILLS)")
	sectionsCmd.Flags().Bool("skills", false, "print the skill tokens instead of the raw block")
	sectionsCmd.Flags().Int("max-skills", 40, "maximum skill tokens with --skills")
}
