package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/loop"
	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
	"github.com/BearPays/code-review-assistant-back/pkg/llm"
)

const NextStepsHeading = "**Suggested next steps**"

const staticNextSteps = NextStepsHeading + "\n" +
	"- Ask about a specific changed file to go deeper into its diff.\n" +
	"- Check the change against its requirements (for example: \"Which acceptance criteria does this PR cover?\").\n" +
	"- Type `start review` for a complete structured review report."

var (
	// A line holding only a next-steps title, as a Markdown heading or bold text.
	nextStepsLine = regexp.MustCompile(`(?im)^[ \t]*(#{1,6}[ \t]*)?(\*\*|__)?[ \t]*(suggested[ \t]+)?next[ \t]+steps[ \t]*:?[ \t]*(\*\*|__)?[ \t]*:?[ \t]*$`)
	headingLine   = regexp.MustCompile(`(?m)^[ \t]*(#{1,6}[ \t]+\S|\*\*[^*\n]+\*\*[ \t]*:?[ \t]*$)`)
	asksNextSteps = regexp.MustCompile(`(?i)\bnext[ \t]+steps?\b|\bwhat[ \t]+should[ \t]+i[ \t]+do[ \t]+next\b|\bwhat('s|[ \t]+is)[ \t]+next\b|\bwhat[ \t]+now\b`)
)

// ModePolicy applies the answer-shape rules of each mode after the loop finishes.
type ModePolicy struct {
	provider llm.LLMProvider
	prompts  *prompt.Set
	logger   logger.ILogger
}

func NewModePolicy(provider llm.LLMProvider, prompts *prompt.Set, log logger.ILogger) *ModePolicy {
	return &ModePolicy{provider: provider, prompts: prompts, logger: log}
}

// Finalize returns the answer to deliver. The relayed review report is never altered.
func (p *ModePolicy) Finalize(ctx context.Context, mode Mode, query string, res loop.Result) string {
	answer := res.Answer
	if res.Verbatim {
		return answer
	}

	switch mode {
	case ModeCoReviewer:
		if HasNextSteps(answer) {
			return answer
		}
		return p.addNextSteps(ctx, mode, query, answer)
	case ModeInteractiveAssistant:
		if asksNextSteps.MatchString(query) {
			return answer
		}
		return StripNextSteps(answer)
	}
	return answer
}

func (p *ModePolicy) addNextSteps(ctx context.Context, mode Mode, query, answer string) string {
	if p.provider != nil {
		rewritten, err := p.provider.Chat(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: p.prompts.System(string(mode))},
			{Role: llm.RoleUser, Content: query},
			{Role: llm.RoleAssistant, Content: answer},
			{Role: llm.RoleUser, Content: p.prompts.NextSteps},
		})
		rewritten = strings.TrimSpace(rewritten)
		if err == nil && HasNextSteps(rewritten) {
			return rewritten
		}
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("ModePolicy", "Next steps rewrite failed, using static section", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return strings.TrimRight(answer, "\n") + "\n\n" + staticNextSteps
}

func HasNextSteps(answer string) bool {
	return nextStepsLine.MatchString(answer)
}

// StripNextSteps removes a trailing next-steps section: the last next-steps title and
// everything after it, provided no other heading follows.
func StripNextSteps(answer string) string {
	locs := nextStepsLine.FindAllStringIndex(answer, -1)
	if len(locs) == 0 {
		return answer
	}
	last := locs[len(locs)-1]
	if headingLine.MatchString(answer[last[1]:]) {
		return answer
	}
	stripped := strings.TrimRight(answer[:last[0]], " \t\n")
	stripped = strings.TrimSuffix(stripped, "---")
	stripped = strings.TrimRight(stripped, " \t\n")
	if stripped == "" {
		return answer
	}
	return stripped
}
