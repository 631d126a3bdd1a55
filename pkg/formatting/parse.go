package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when oracle output cannot be parsed as JSON,
// either directly or from a markdown code fence.
var ErrParseFailed = errors.New("failed to parse response")

var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse unmarshals content as JSON into T. Extraction oracles frequently
// wrap structured output in a markdown code fence, so when the content is
// not JSON on its own the fenced block is tried next. Returns
// ErrParseFailed when neither attempt yields valid JSON.
func Parse[T any](content string) (T, error) {
	content = strings.TrimSpace(content)

	for _, candidate := range []string{content, fencedBlock(content)} {
		if candidate == "" {
			continue
		}
		var result T
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("%w: %s", ErrParseFailed, content)
}

// fencedBlock returns the body of the first markdown code fence, or "".
func fencedBlock(content string) string {
	matches := fencePattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(matches[1])
}
