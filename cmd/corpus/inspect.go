package main

import (
	"fmt"
	"io"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [change-set-id]",
	Short: "Show chunk and file counts per corpus",
	Long:  "Without an id, every indexed change set is listed.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newIngestRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		var changeSetID string
		if len(args) == 1 {
			changeSetID = args[0]
		}
		stats, err := rt.service.Stats(cmd.Context(), changeSetID)
		if err != nil {
			return err
		}
		if changeSetID != "" {
			printStats(cmd.OutOrStdout(), changeSetID, stats)
			return nil
		}

		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("No change sets indexed"))
			return nil
		}
		// rows come ordered by change set
		for start := 0; start < len(stats); {
			end := start
			for end < len(stats) && stats[end].ChangeSetId == stats[start].ChangeSetId {
				end++
			}
			printStats(cmd.OutOrStdout(), stats[start].ChangeSetId, stats[start:end])
			start = end
		}
		return nil
	},
}

// printStats lists every corpus, including empty ones, since an empty corpus means a tool
// will answer "no results" for the change set.
func printStats(w io.Writer, changeSetID string, stats []entity.CorpusStat) {
	byCorpus := make(map[string]entity.CorpusStat, len(stats))
	for _, s := range stats {
		byCorpus[s.Corpus] = s
	}

	fmt.Fprintln(w, color.New(color.Bold).Sprintf("%s", changeSetID))
	for _, kind := range corpus.AllKinds {
		s, ok := byCorpus[string(kind)]
		name := kind.CollectionName(changeSetID)
		if !ok || s.Chunks == 0 {
			fmt.Fprintf(w, "  %-40s %s\n", name, color.YellowString("empty"))
			continue
		}
		fmt.Fprintf(w, "  %-40s %6d chunks %5d files\n", name, s.Chunks, s.Files)
	}
}
