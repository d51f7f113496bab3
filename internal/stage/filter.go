package stage

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern selects stages by name or command. A pattern wrapped in slashes
// is a regular expression; anything else matches as a case-insensitive
// substring.
type Pattern struct {
	re     *regexp.Regexp
	substr string
}

// Compile turns raw pattern strings into Patterns, skipping blanks.
func Compile(raw []string) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		switch {
		case s == "":
		case len(s) > 1 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/"):
			re, err := regexp.Compile(s[1 : len(s)-1])
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q: %w", s, err)
			}
			patterns = append(patterns, Pattern{re: re})
		default:
			patterns = append(patterns, Pattern{substr: strings.ToLower(s)})
		}
	}
	return patterns, nil
}

// Match reports whether the pattern matches s.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.substr)
}

// Filter applies only/skip patterns to stages, preserving order.
func Filter(stages []Stage, onlyPatterns, skipPatterns []Pattern) []Stage {
	if len(stages) == 0 {
		return nil
	}
	result := make([]Stage, 0, len(stages))
	for _, st := range stages {
		if st.Run == "" {
			continue
		}
		if len(onlyPatterns) > 0 && !matches(st, onlyPatterns) {
			continue
		}
		if len(skipPatterns) > 0 && matches(st, skipPatterns) {
			continue
		}
		result = append(result, st)
	}
	return result
}

func matches(st Stage, patterns []Pattern) bool {
	for _, pattern := range patterns {
		if pattern.Match(st.Name) || pattern.Match(st.Run) {
			return true
		}
	}
	return false
}
