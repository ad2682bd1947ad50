package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/llm"
	"github.com/BearPays/code-review-assistant-back/pkg/rag/corpus"
)

// Synthesizer composes retrieved fragments into one answer for the query.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, fragments []corpus.Fragment) (string, error)
}

const notInContext = "The provided context does not contain this information."

func writeFragment(b *strings.Builder, f corpus.Fragment) {
	if f.FilePath != "" {
		fmt.Fprintf(b, "<fragment file=%q chunk=\"%d\">\n", f.FilePath, f.ChunkIndex)
	} else {
		b.WriteString("<fragment>\n")
	}
	b.WriteString(f.Text)
	b.WriteString("\n</fragment>\n")
}

func writeGroundingRules(b *strings.Builder) {
	b.WriteString("<guidelines>\n")
	b.WriteString("1. Answer strictly from the context above, never from prior knowledge\n")
	b.WriteString("2. Keep file paths, identifiers and code exactly as they appear\n")
	fmt.Fprintf(b, "3. If the context does not contain the answer, reply: %q\n", notInContext)
	b.WriteString("</guidelines>\n\n")
}

func writeQuery(b *strings.Builder, query string) {
	b.WriteString("<question>\n")
	b.WriteString(query)
	b.WriteString("\n</question>\n")
}

func answerPrompt(query string, fragments []corpus.Fragment) string {
	var b strings.Builder
	b.WriteString("<context>\n")
	for _, f := range fragments {
		writeFragment(&b, f)
	}
	b.WriteString("</context>\n\n")
	writeGroundingRules(&b)
	writeQuery(&b, query)
	return b.String()
}

func generate(ctx context.Context, provider llm.LLMProvider, prompt string) (string, error) {
	out, err := provider.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
