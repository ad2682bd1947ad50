package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
)

// Refine answers from the first fragment and then walks the rest, asking the model to
// extend the running answer. Facts about every file seen so far must survive each pass,
// which is why the diff corpus uses it.
type Refine struct {
	provider llm.LLMProvider
}

func NewRefine(provider llm.LLMProvider) *Refine {
	return &Refine{provider: provider}
}

func (r *Refine) Synthesize(ctx context.Context, query string, fragments []corpus.Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", errors.New("refine: no fragments")
	}

	answer, err := generate(ctx, r.provider, answerPrompt(query, fragments[:1]))
	if err != nil {
		return "", fmt.Errorf("refine initial answer: %w", err)
	}

	for i, f := range fragments[1:] {
		refined, err := generate(ctx, r.provider, refinePrompt(query, answer, f))
		if err != nil {
			return "", fmt.Errorf("refine step %d: %w", i+1, err)
		}
		if refined == "" {
			continue
		}
		answer = refined
	}
	return answer, nil
}

func refinePrompt(query, existing string, f corpus.Fragment) string {
	var b strings.Builder
	b.WriteString("<existing_answer>\n")
	b.WriteString(existing)
	b.WriteString("\n</existing_answer>\n\n")

	b.WriteString("<context>\n")
	writeFragment(&b, f)
	b.WriteString("</context>\n\n")

	b.WriteString("<task>\n")
	b.WriteString("Refine the existing answer with the new context. Keep every fact the existing answer states about other files.\n")
	b.WriteString("If the new context adds nothing relevant, return the existing answer unchanged.\n")
	b.WriteString("</task>\n\n")

	writeGroundingRules(&b)
	writeQuery(&b, query)
	return b.String()
}
