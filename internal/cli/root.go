// Package cli wires the analysis engine into the kscope command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kscope",
		Short: "Educational code intelligence for kernel-style source trees",
		Long: `kscope ingests kernel-style Rust, C, and assembly sources - including
malformed ones - and produces syntax token streams, symbol inventories,
complexity scores, data-flow traces, a globally linked call graph, and
performance hotspot reports aimed at students reading systems code.`,
	}

	rootCmd.PersistentFlags().String("root", ".", "Corpus root directory")
	rootCmd.PersistentFlags().String("config", "kscope.yml", "Config file path, relative to root")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze one file or the whole corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunAnalyze,
	}
	analyzeCmd.Flags().Bool("tokens", false, "Include the full syntax token stream in output")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the linked global call graph",
		RunE:  RunGraph,
	}

	hotspotsCmd := &cobra.Command{
		Use:   "hotspots [file]",
		Short: "Print performance hotspots for a file or the whole corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunHotspots,
	}

	dataflowCmd := &cobra.Command{
		Use:   "dataflow <file>",
		Short: "Print per-variable data-flow traces for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunDataflow,
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search functions, variables, and types across the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Int("limit", 10, "Maximum number of matches to return")

	callersCmd := &cobra.Command{
		Use:   "callers <name>",
		Short: "Show functions that call the named function",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCallers,
	}

	calleesCmd := &cobra.Command{
		Use:   "callees <name>",
		Short: "Show functions called by the named function",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCallees,
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Re-analyze changed files and re-link the call graph",
		RunE:  RunUpdate,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kscope %s\n", version)
		},
	}

	rootCmd.AddCommand(
		analyzeCmd,
		graphCmd,
		hotspotsCmd,
		dataflowCmd,
		searchCmd,
		callersCmd,
		calleesCmd,
		updateCmd,
		versionCmd,
	)
	return rootCmd
}
