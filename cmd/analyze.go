package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/comps-intel/internal/model"
	"github.com/sells-group/comps-intel/internal/selector"
)

var (
	analyzeCompany      string
	analyzeFiles        []string
	analyzeResponseFile string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze candidate workbooks for one subject company",
	Long:  "Runs one analysis over the given files and any \"Full Path:\" references found in --response-file, and prints the JSON result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var response string
		if analyzeResponseFile != "" {
			b, err := os.ReadFile(analyzeResponseFile)
			if err != nil {
				return eris.Wrap(err, "read response file")
			}
			response = string(b)
		}

		env, err := initAnalyzer(ctx, cfg, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Analyzer.Analyze(ctx, analyzeCompany, collectCandidates(analyzeFiles, response))
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCompany, "company", "", "subject company name (required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeFiles, "file", nil, "candidate file path (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeResponseFile, "response-file", "", "file holding upstream search text with \"Full Path:\" references")
	_ = analyzeCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(analyzeCmd)
}

// collectCandidates merges explicit file paths with the references found in
// response text. Explicit files come first; duplicates are dropped.
func collectCandidates(files []string, response string) []model.FileReference {
	seen := make(map[string]bool)
	var refs []model.FileReference
	for _, f := range files {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		refs = append(refs, model.FileReference{
			Path:         f,
			RelativePath: selector.RelativePath(f),
			Category:     selector.Categorize(f),
		})
	}
	for _, r := range selector.ExtractPaths(response) {
		if seen[r.Path] {
			continue
		}
		seen[r.Path] = true
		refs = append(refs, r)
	}
	return refs
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
