package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/metrics"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/tool"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/prdata"
	"github.com/BearPays/code-review-assistant-back/pkg/redact"
)

const DefaultMaxSteps = 30

// AllowedCapabilities is the only tool set a review run may use. The diff tool is
// excluded because the diff is already in the payload, the review tool to prevent recursion.
var AllowedCapabilities = []tool.Capability{tool.CapabilityCodeSearch, tool.CapabilityRequirementsSearch}

type Config struct {
	ChangeSetID string
	Payloads    PayloadStore
	Planner     loop.Planner
	Tools       *tool.Registry
	Prompts     *prompt.Set
	MaxSteps    int
	RedactPaths []string
	Logger      logger.ILogger
	Metrics     *metrics.Agent
}

type Generator struct {
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.Default()
	}
	if cfg.RedactPaths == nil {
		cfg.RedactPaths = redact.DefaultPathPatterns
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Tools == nil {
		cfg.Tools = &tool.Registry{}
	}
	return &Generator{cfg: cfg}
}

// Generate produces the structured review report of the change set.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	raw, err := g.cfg.Payloads.Load(ctx, g.cfg.ChangeSetID)
	if err != nil {
		return "", err
	}
	pr, err := prdata.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayloadUnavailable, err)
	}
	scrub(pr, g.cfg.RedactPaths)

	message, err := reviewRequest(pr)
	if err != nil {
		return "", err
	}

	filenames := make([]string, 0, len(pr.Files))
	for _, f := range pr.Files {
		filenames = append(filenames, f.Filename)
	}

	g.cfg.Logger.Info("ReviewGenerator", "Starting review", map[string]interface{}{
		"change_set_id": g.cfg.ChangeSetID,
		"files":         len(filenames),
	})

	history := []llm.Message{{Role: llm.RoleSystem, Content: g.cfg.Prompts.Review}}
	runCfg := loop.Config{
		Name:     "review",
		Planner:  g.cfg.Planner,
		Tools:    g.cfg.Tools.Only(AllowedCapabilities...),
		MaxSteps: g.cfg.MaxSteps,
		Logger:   g.cfg.Logger,
		Metrics:  g.cfg.Metrics,
	}

	res, err := loop.Run(ctx, runCfg, history, message)
	if err != nil {
		return "", fmt.Errorf("review loop: %w", err)
	}
	report := res.Answer

	missing := MissingSections(report)
	missingFiles := MissingFiles(report, filenames)
	remaining := g.cfg.MaxSteps - res.Steps
	if (len(missing) > 0 || len(missingFiles) > 0) && remaining > 0 && !res.BudgetExceeded {
		g.cfg.Logger.Warn("ReviewGenerator", "Report incomplete, requesting repair", map[string]interface{}{
			"missing_sections": missing,
			"missing_files":    missingFiles,
		})

		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: message},
			llm.Message{Role: llm.RoleAssistant, Content: report},
		)
		runCfg.MaxSteps = remaining
		repaired, err := loop.Run(ctx, runCfg, history, repairRequest(missing, missingFiles))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			g.cfg.Logger.Warn("ReviewGenerator", "Repair failed", map[string]interface{}{"error": err.Error()})
		} else if len(MissingSections(repaired.Answer)) <= len(missing) {
			report = repaired.Answer
		}
	}

	if err := ValidateReport(report); err != nil {
		return "", err
	}
	if files := MissingFiles(report, filenames); len(files) > 0 {
		g.cfg.Logger.Warn("ReviewGenerator", "Report does not cover every changed file", map[string]interface{}{
			"missing_files": files,
		})
	}
	return report, nil
}

// Tool exposes the generator as the start_review tool. Only a finished report is relayed
// verbatim; a failure comes back as an error, which the calling loop observes and explains.
func (g *Generator) Tool(description string) tool.Tool {
	return tool.Tool{
		Name:        prompt.ToolStartReview,
		Description: description,
		Capability:  tool.CapabilityReview,
		Verbatim:    true,
		Call: func(ctx context.Context, _ string) (string, error) {
			report, err := g.Generate(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				g.cfg.Logger.Error("ReviewGenerator", "Review failed", map[string]interface{}{
					"change_set_id": g.cfg.ChangeSetID,
					"error":         err.Error(),
				})
				return "", fmt.Errorf("generating review: %w", err)
			}
			return report, nil
		},
	}
}

func scrub(pr *prdata.PullRequest, paths []string) {
	pr.Title = redact.Secrets(pr.Title)
	pr.Description = redact.Secrets(pr.Description)
	for i := range pr.Files {
		pr.Files[i].Diff = redact.Content(pr.Files[i].Diff, pr.Files[i].Filename, paths)
		if redact.MatchPath(pr.Files[i].Filename, paths) {
			pr.Files[i].DiffChunks = nil
		}
	}
}

func reviewRequest(pr *prdata.PullRequest) (string, error) {
	payload, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render payload: %w", err)
	}

	var b strings.Builder
	b.WriteString("## PR DATA TO REVIEW\n\n")
	b.WriteString("```json\n")
	b.Write(payload)
	b.WriteString("\n```\n\n")
	b.WriteString("## FILE MANIFEST\n\n")
	b.WriteString("The File Reviews section must cover every one of these files:\n")
	b.WriteString(pr.Manifest())
	b.WriteString("\n\n")
	b.WriteString("Write the complete review now, following the report format in your instructions. ")
	b.WriteString("All PR information is above; do not ask for more. Use the tools only for additional context.")
	return b.String(), nil
}

func repairRequest(sections, files []string) string {
	var parts []string
	if len(sections) > 0 {
		parts = append(parts, "these required sections are missing: "+strings.Join(sections, ", "))
	}
	if len(files) > 0 {
		parts = append(parts, "these changed files are not reviewed: "+strings.Join(files, ", "))
	}
	return "Your report is incomplete: " + strings.Join(parts, "; ") +
		". Reply with the complete report again, with every required section and every changed file."
}
