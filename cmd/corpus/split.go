package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BearPays/code-review-assistant-back/internal/service"
	"github.com/BearPays/code-review-assistant-back/pkg/prdata"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split <pr.json>",
	Short: "Split a pull request record into metadata and per-file records",
	Long: `Write pr_metadata.json and modified_files/<path>.json under <out>/pr_data,
keeping the original file paths. By default <out> is the change set directory
that contains the record (the parent of its pr_data folder).`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().StringP("out", "o", "", "change set directory to write into")
}

func runSplit(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading pull request: %w", err)
	}
	pr, err := prdata.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing pull request: %w", err)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = defaultSplitDir(args[0])
	}

	n, err := service.WriteSplit(pr, raw, out)
	if err != nil {
		return fmt.Errorf("writing split: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %d files for PR #%d into %s\n",
		color.GreenString("ok"), n, pr.Number, filepath.Join(out, "pr_data"))
	return nil
}

func defaultSplitDir(prPath string) string {
	dir := filepath.Dir(prPath)
	if filepath.Base(dir) == "pr_data" {
		return filepath.Dir(dir)
	}
	return dir
}
