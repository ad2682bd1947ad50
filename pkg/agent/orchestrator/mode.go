package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BearPays/code-review-assistant-back/pkg/agent/prompt"
)

var ErrInvalidMode = errors.New("invalid mode")

// Mode selects the agent's conversational behaviour.
type Mode string

const (
	ModeCoReviewer           Mode = prompt.ModeCoReviewer
	ModeInteractiveAssistant Mode = prompt.ModeInteractiveAssistant
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCoReviewer, ModeInteractiveAssistant:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidMode, s, ModeCoReviewer, ModeInteractiveAssistant)
	}
}

func (m Mode) String() string { return string(m) }

// IsStartReview reports whether the query is the literal review command.
func IsStartReview(query string) bool {
	return strings.EqualFold(strings.TrimSpace(query), "start review")
}
