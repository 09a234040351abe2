package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/ai"
	"github.com/kenzatoreis/hiringbuddy/internal/retrieval"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const promptDone = "done"

var matchCmd = &cobra.Command{
	Use:   "match REQUIREMENT...",
	Short: "Rank indexed documents against a job requirement",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	registerMatchFlags(matchCmd)
}

func registerMatchFlags(c *cobra.Command) {
	c.Flags().Int("top-docs", 0, "number of documents to return (default retrieval.top-k-documents)")
	c.Flags().Int("top-snippets", 0, "snippets per document (default retrieval.top-k-snippets)")
	c.Flags().Bool("sections", true, "append skills and experience blocks to the snippets")
	c.Flags().String("scope", "", "candidate documents: latest or all (default retrieval.scope)")
	c.Flags().Int("limit", 0, "maximum candidate documents when scope is all")
	c.Flags().StringSlice("exclude", nil, "document ids to leave out")
	c.Flags().StringSlice("disable-filter", nil, "candidate filters to skip (exclude_documents, latest_per_owner, limit)")
	c.Flags().String("resume-file", "", "resume text used for section blocks when longer than the stored text")
	c.Flags().Bool("assess", false, "ask the language model to assess every result")
	c.Flags().String("language", "", "assessment language, en or fr (default ai.language)")
	c.Flags().Bool("pick", false, "choose a result interactively instead of printing all of them")
}

type matchOutput struct {
	retrieval.DocumentResult
	Assessment *ai.Assessment `json:"assessment,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, err := newApplication()
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := matchRequest(cmd, a.config, strings.Join(args, " "))
	if err != nil {
		return err
	}

	assess, _ := cmd.Flags().GetBool("assess")
	var assessor ai.Assessor
	if assess {
		if assessor, err = a.assessor(cmd.Context()); err != nil {
			return err
		}
		if assessor == nil {
			return errAssessDisabled
		}
	}

	retriever, err := a.retriever(cmd.Context())
	if err != nil {
		return err
	}

	res, err := retriever.Retrieve(cmd.Context(), req)
	if err != nil {
		return err
	}
	if len(res.Results) == 0 {
		a.logger.Info("no indexed documents matched", zap.String("scope", string(req.Scope)))
	}

	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = a.config.AI.Language
	}

	out := make([]matchOutput, 0, len(res.Results))
	for _, dr := range res.Results {
		item := matchOutput{DocumentResult: dr}
		if assessor != nil {
			item.Assessment, err = assessor.Assess(cmd.Context(), ai.AssessRequest{
				DocumentID:  dr.DocumentID,
				Requirement: req.Requirement,
				Snippets:    dr.Snippets,
				Language:    language,
			})
			if err != nil {
				return fmt.Errorf("assess %s: %w", dr.DocumentID, err)
			}
		}
		out = append(out, item)
	}

	if pick, _ := cmd.Flags().GetBool("pick"); pick && len(out) > 0 {
		return pickResult(cmd.OutOrStdout(), out)
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"results": out, "filters": res.Filters})
}

func matchRequest(cmd *cobra.Command, config *Config, requirement string) (retrieval.Request, error) {
	flags := cmd.Flags()

	scopeFlag, _ := flags.GetString("scope")
	if scopeFlag == "" {
		scopeFlag = config.Retrieval.Scope
	}
	scope, err := parseScope(scopeFlag)
	if err != nil {
		return retrieval.Request{}, err
	}

	req := retrieval.Request{
		OwnerID:       config.Owner,
		Requirement:   requirement,
		TopKDocuments: config.Retrieval.TopKDocuments,
		TopKSnippets:  config.Retrieval.TopKSnippets,
		Sections:      config.Retrieval.Sections,
		Scope:         scope,
		Limit:         config.Retrieval.Limit,
	}

	if n, _ := flags.GetInt("top-docs"); n > 0 {
		req.TopKDocuments = n
	}
	if n, _ := flags.GetInt("top-snippets"); n > 0 {
		req.TopKSnippets = n
	}
	if n, _ := flags.GetInt("limit"); n > 0 {
		req.Limit = n
	}
	if flags.Changed("sections") {
		req.Sections, _ = flags.GetBool("sections")
	}
	req.ExcludeIDs, _ = flags.GetStringSlice("exclude")
	req.DisableFilters, _ = flags.GetStringSlice("disable-filter")

	if path, _ := flags.GetString("resume-file"); path != "" {
		text, err := readInput(cmd.InOrStdin(), path)
		if err != nil {
			return retrieval.Request{}, err
		}
		req.DocumentText = text
	}

	return req, nil
}

func pickResult(w io.Writer, results []matchOutput) error {
	items := make([]string, 0, len(results)+1)
	for _, r := range results {
		items = append(items, fmt.Sprintf("%s (%.3f) %s", r.DocumentName, r.BestScore, r.DocumentID))
	}
	items = append(items, promptDone)

	for {
		resultPrompt := promptui.Select{
			Label: "Choose a document and press ENTER",
			Items: items,
		}

		idx, selected, err := resultPrompt.Run()
		if err != nil {
			return err
		}
		if selected == promptDone {
			return nil
		}
		if err := printJSON(w, results[idx]); err != nil {
			return err
		}
	}
}
