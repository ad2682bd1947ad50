package review

import (
	"errors"
	"fmt"
	"strings"
)

var ErrIncompleteReport = errors.New("review report is incomplete")

var RequiredSections = []string{
	"PR Summary",
	"Overall Assessment",
	"File Reviews",
	"Cross-Cutting Concerns",
	"Suggested Next Steps",
}

// MissingSections lists required sections with no Markdown heading in the report.
func MissingSections(report string) []string {
	headings := map[string]bool{}
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(line, "#"))
		title = strings.Trim(title, "*_` ")
		headings[strings.ToLower(title)] = true
	}

	var missing []string
	for _, s := range RequiredSections {
		if !headings[strings.ToLower(s)] {
			missing = append(missing, s)
		}
	}
	return missing
}

func ValidateReport(report string) error {
	if strings.TrimSpace(report) == "" {
		return fmt.Errorf("%w: report is empty", ErrIncompleteReport)
	}
	if missing := MissingSections(report); len(missing) > 0 {
		return fmt.Errorf("%w: missing sections: %s", ErrIncompleteReport, strings.Join(missing, ", "))
	}
	return nil
}

// MissingFiles lists changed files the report never mentions.
func MissingFiles(report string, files []string) []string {
	var missing []string
	for _, f := range files {
		if f != "" && !strings.Contains(report, f) {
			missing = append(missing, f)
		}
	}
	return missing
}
