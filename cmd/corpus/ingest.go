package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/service"
	"github.com/BearPays/code-review-assistant-back/pkg/prdata"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [change-set-dir]",
	Short: "Index a change set into the pr_data, source_code and pr_feature corpora",
	Long: `Index a change set directory laid out as
  <dir>/pr_data/      pull request record and its split files
  <dir>/source_code/  repository snapshot
  <dir>/pr_feature/   requirements and feature documents

or a unified diff with --diff (only the pr_data corpus is filled).

Examples:
  corpus ingest data/pr-42
  corpus ingest --diff change.patch --id pr-42 --title "Add login"
  git diff main | corpus ingest --diff - --id local-1`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runIngest(cmd, args, force)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [change-set-dir]",
	Short: "Replace the indexed corpora of a change set",
	Long:  "Same as ingest --force. Running servers drop their cached answers for the change set.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, reindexCmd} {
		c.Flags().String("id", "", "change set id (default: directory name)")
		c.Flags().String("diff", "", "unified diff file to ingest, - for stdin")
		c.Flags().Int("number", 0, "pull request number for --diff")
		c.Flags().String("title", "", "title for --diff")
		c.Flags().String("description", "", "description for --diff")
	}
	ingestCmd.Flags().BoolP("force", "f", false, "re-index a change set that already has chunks")
}

func runIngest(cmd *cobra.Command, args []string, force bool) error {
	req, err := buildIngestRequest(cmd, args)
	if err != nil {
		return err
	}
	req.Force = force

	rt, err := newIngestRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.service.Ingest(cmd.Context(), *req)
	if errors.Is(err, service.ErrAlreadyIngested) {
		return fmt.Errorf("%s is already indexed; run reindex or pass --force", req.ChangeSetID)
	}
	if err != nil {
		return err
	}

	printIngestResult(cmd.OutOrStdout(), res)
	return nil
}

func buildIngestRequest(cmd *cobra.Command, args []string) (*service.IngestRequest, error) {
	id, _ := cmd.Flags().GetString("id")
	diffPath, _ := cmd.Flags().GetString("diff")

	if diffPath != "" {
		if id == "" {
			return nil, errors.New("--id is required with --diff")
		}
		raw, err := readInput(cmd, diffPath)
		if err != nil {
			return nil, err
		}
		number, _ := cmd.Flags().GetInt("number")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")

		pr, err := prdata.FromUnifiedDiff(string(raw), number, title, description)
		if err != nil {
			return nil, fmt.Errorf("parsing diff: %w", err)
		}
		docs, err := service.PullRequestDocuments(pr)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(pr)
		if err != nil {
			return nil, err
		}
		return &service.IngestRequest{
			ChangeSetID: id,
			Title:       pr.Title,
			Description: pr.Description,
			Documents:   docs,
			Payload:     payload,
		}, nil
	}

	if len(args) == 0 {
		return nil, errors.New("a change set directory or --diff is required")
	}
	dir := args[0]
	if id == "" {
		id = filepath.Base(filepath.Clean(dir))
	}
	docs, payload, err := service.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}

	req := &service.IngestRequest{ChangeSetID: id, Documents: docs, Payload: payload}
	if payload != nil {
		if pr, err := prdata.Parse(payload); err == nil {
			req.Title, req.Description = pr.Title, pr.Description
		}
	}
	return req, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

func printIngestResult(w io.Writer, res *service.IngestResult) {
	verb := "Indexed"
	if res.Reindexed {
		verb = "Re-indexed"
	}
	fmt.Fprintf(w, "%s %s: %d files in %s\n", color.GreenString(verb), color.New(color.Bold).Sprint(res.ChangeSetID),
		res.Files, res.Duration.Round(time.Millisecond))

	kinds := make([]corpus.Kind, 0, len(res.Chunks))
	for k := range res.Chunks {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-12s %d chunks\n", k, res.Chunks[k])
	}
	for _, skipped := range res.Skipped {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("withheld"), skipped)
	}
}
