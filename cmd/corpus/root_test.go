package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BearPays/code-review-assistant-back/internal/entity"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "split", "ingest", "reindex", "inspect"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

const samplePR = `{
  "pr_number": 42,
  "title": "Add login",
  "description": "Adds a login endpoint",
  "files": [
    {"filename": "auth/login.go", "status": "added", "additions": 3, "deletions": 0, "full_diff": "+package auth"}
  ]
}`

func TestSplitWritesNextToRecord(t *testing.T) {
	dir := t.TempDir()
	prPath := filepath.Join(dir, "pr_data", "pr.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(prPath), 0o755))
	require.NoError(t, os.WriteFile(prPath, []byte(samplePR), 0o644))

	var out bytes.Buffer
	splitCmd.SetOut(&out)
	require.NoError(t, splitCmd.Flags().Set("out", ""))
	require.NoError(t, runSplit(splitCmd, []string{prPath}))

	assert.FileExists(t, filepath.Join(dir, "pr_data", "pr_metadata.json"))
	assert.FileExists(t, filepath.Join(dir, "pr_data", "modified_files", "auth", "login.go.json"))
	assert.Contains(t, out.String(), "PR #42")
}

func TestBuildIngestRequestFromDiff(t *testing.T) {
	diff := `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,2 +1,2 @@
 package main
-var x = 1
+var x = 2
`
	path := filepath.Join(t.TempDir(), "change.patch")
	require.NoError(t, os.WriteFile(path, []byte(diff), 0o644))

	cmd := ingestCmd
	t.Cleanup(func() {
		_ = cmd.Flags().Set("diff", "")
		_ = cmd.Flags().Set("id", "")
	})
	require.NoError(t, cmd.Flags().Set("diff", path))

	_, err := buildIngestRequest(cmd, nil)
	assert.ErrorContains(t, err, "--id is required")

	require.NoError(t, cmd.Flags().Set("id", "local-1"))
	require.NoError(t, cmd.Flags().Set("number", "7"))
	req, err := buildIngestRequest(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, "local-1", req.ChangeSetID)
	assert.NotEmpty(t, req.Payload)

	paths := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		paths = append(paths, d.Path)
	}
	assert.Contains(t, paths, "pr_metadata.json")
	assert.Contains(t, paths, "modified_files/main.go.json")
}

func TestPrintStatsShowsEmptyCorpora(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	printStats(&out, "pr-1", []entity.CorpusStat{{ChangeSetId: "pr-1", Corpus: "diff", Chunks: 12, Files: 3}})

	s := out.String()
	assert.Contains(t, s, "pr-1_pr_data")
	assert.Contains(t, s, "12 chunks")
	assert.Contains(t, s, "pr-1_source_code")
	assert.Contains(t, s, "empty")
}
