package llm

import (
	"regexp"
	"strings"
)

var (
	// ```html ... ``` fenced block
	htmlFencePattern = regexp.MustCompile("(?s)```html\\s*\n?(.*?)```")

	// Any fenced block, capturing the language tag separately so bare fences
	// can be told apart from tagged ones. A fence tagged with another
	// language (css, json, ...) is not application code and must not outrank
	// the DOCTYPE rules.
	fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)[ \t]*\r?\n?(.*?)```")

	doctypePattern = regexp.MustCompile(`(?i)<!DOCTYPE\s+html`)
)

// ExtractHTML pulls application code out of a free-form model response.
// Models wrap output unpredictably, so extraction degrades gracefully, in
// priority order:
//
//  1. a ```html fenced block
//  2. a fenced block with no language tag
//  3. the whole response when it starts with a DOCTYPE
//  4. the response from the first embedded DOCTYPE onward
//  5. the trimmed response itself
//
// It never fails: surfacing something to the user beats failing the pipeline
// on a formatting quirk. Returns "" only when the input is empty.
func ExtractHTML(response string) string {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return ""
	}

	if m := htmlFencePattern.FindStringSubmatch(trimmed); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			return inner
		}
	}

	for _, m := range fencePattern.FindAllStringSubmatch(trimmed, -1) {
		if m[1] != "" {
			continue
		}
		if inner := strings.TrimSpace(m[2]); inner != "" {
			return inner
		}
	}

	if loc := doctypePattern.FindStringIndex(trimmed); loc != nil {
		return strings.TrimSpace(trimmed[loc[0]:])
	}

	return trimmed
}
