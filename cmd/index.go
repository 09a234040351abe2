package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kenzatoreis/hiringbuddy/internal/indexer"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index FILE",
	Short: "Chunk, embed and store a plain-text document (use - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().String("name", "", "document name (default is the file name)")
	indexCmd.Flags().String("id", "", "document id (generated when empty)")
	indexCmd.Flags().Int("max-tokens", 0, "override chunking.max-tokens for this document")
	indexCmd.Flags().Int("overlap", 0, "override chunking.overlap for this document")
}

func runIndex(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" && args[0] != "-" {
		name = filepath.Base(args[0])
	}
	id, _ := cmd.Flags().GetString("id")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	overlap, _ := cmd.Flags().GetInt("overlap")

	a, err := newApplication()
	if err != nil {
		return err
	}
	defer a.Close()

	idx, err := a.indexer(cmd.Context())
	if err != nil {
		return err
	}

	res, err := idx.Index(cmd.Context(), indexer.IndexRequest{
		OwnerID:    a.config.Owner,
		DocumentID: id,
		Name:       name,
		Text:       text,
		MaxTokens:  maxTokens,
		Overlap:    overlap,
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), res)
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(pretty))
	return err
}
