package prompt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ModeCoReviewer           = "co_reviewer"
	ModeInteractiveAssistant = "interactive_assistant"
)

const (
	ToolSearchPR           = "search_pr"
	ToolSearchCode         = "search_code"
	ToolSearchRequirements = "search_requirements"
	ToolStartReview        = "start_review"
)

// Set holds every instruction text the agent sends to a model. Any entry can be replaced
// from a YAML file; entries the file leaves out keep their defaults.
type Set struct {
	Modes     map[string]string `yaml:"modes"`
	Tools     map[string]string `yaml:"tools"`
	Review    string            `yaml:"review"`
	NextSteps string            `yaml:"next_steps"`
}

func Default() *Set {
	return &Set{
		Modes: map[string]string{
			ModeCoReviewer:           coReviewerPrompt,
			ModeInteractiveAssistant: interactivePrompt,
		},
		Tools: map[string]string{
			ToolSearchPR:           searchPRContract,
			ToolSearchCode:         searchCodeContract,
			ToolSearchRequirements: searchRequirementsContract,
			ToolStartReview:        startReviewContract,
		},
		Review:    reviewInstructions,
		NextSteps: nextStepsInstruction,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty path means defaults only.
func Load(path string) (*Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt overrides: %w", err)
	}

	var override Set
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse prompt overrides %s: %w", path, err)
	}

	for k, v := range override.Modes {
		if v != "" {
			set.Modes[k] = v
		}
	}
	for k, v := range override.Tools {
		if v != "" {
			set.Tools[k] = v
		}
	}
	if override.Review != "" {
		set.Review = override.Review
	}
	if override.NextSteps != "" {
		set.NextSteps = override.NextSteps
	}
	return set, nil
}

func (s *Set) System(mode string) string {
	return s.Modes[mode]
}

func (s *Set) ToolContract(name string) string {
	return s.Tools[name]
}
