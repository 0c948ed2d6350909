package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kscope-dev/kscope/internal/fileutil"
	"github.com/kscope-dev/kscope/internal/model"
	"github.com/kscope-dev/kscope/internal/search"
)

func RunAnalyze(cmd *cobra.Command, args []string) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	withTokens, _ := cmd.Flags().GetBool("tokens")

	if len(args) == 1 {
		result := eng.Analyze(filepath.ToSlash(args[0]))
		if !withTokens && result.Analysis != nil {
			result.Analysis.SyntaxHighlighting = nil
		}
		return fileutil.PrintJSON(result)
	}

	results := make([]any, 0)
	for _, path := range eng.Files() {
		result := eng.Analyze(path)
		if !withTokens && result.Analysis != nil {
			result.Analysis.SyntaxHighlighting = nil
		}
		results = append(results, result)
	}
	return fileutil.PrintJSON(results)
}

func RunGraph(cmd *cobra.Command, args []string) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	graph, issues, err := eng.CallGraph()
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(map[string]any{
		"call_graph": graph,
		"issues":     issues,
	})
}

func RunHotspots(cmd *cobra.Command, args []string) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = filepath.ToSlash(args[0])
	}
	return fileutil.PrintJSON(eng.Hotspots(path))
}

func RunDataflow(cmd *cobra.Command, args []string) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	result := eng.Analyze(filepath.ToSlash(args[0]))
	if result.Status != model.StatusOK {
		return fileutil.PrintJSON(result)
	}
	return fileutil.PrintJSON(result.DataFlow)
}

func RunSearch(cmd *cobra.Command, args []string) error {
	eng, cfg, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	index := search.Build(eng.FactsSnapshot())

	root, _ := cmd.Flags().GetString("root")
	if err := search.Write(filepath.Join(root, cfg.Analysis.StateDir), index); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	results := search.Search(index, query, limit)

	hits := make([]search.Document, 0, len(results))
	for _, r := range results {
		if doc, ok := index.FindDocument(r.ID); ok {
			hits = append(hits, doc)
		}
	}
	return fileutil.PrintJSON(hits)
}

func RunCallers(cmd *cobra.Command, args []string) error {
	return runNeighbors(cmd, args[0], true)
}

func RunCallees(cmd *cobra.Command, args []string) error {
	return runNeighbors(cmd, args[0], false)
}

func runNeighbors(cmd *cobra.Command, name string, incoming bool) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := eng.AnalyzeCorpus(cmd.Context(), rules); err != nil {
		return err
	}

	var nodes []model.CallGraphNode
	if incoming {
		nodes, err = eng.Callers(name)
	} else {
		nodes, err = eng.Callees(name)
	}
	if err != nil {
		return err
	}
	return fileutil.PrintJSON(nodes)
}

func RunUpdate(cmd *cobra.Command, args []string) error {
	eng, _, rules, err := setup(cmd)
	if err != nil {
		return err
	}

	changed, deleted, err := eng.Update(cmd.Context(), rules)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated: %d changed, %d deleted\n", len(changed), len(deleted))
	return fileutil.PrintJSON(map[string]any{
		"changed": changed,
		"deleted": deleted,
	})
}
