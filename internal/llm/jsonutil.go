package llm

import (
	"regexp"
	"strings"
)

// Pre-compiled patterns for locating and repairing JSON in free-form
// model output.
var (
	// thinkingPattern strips chain-of-thought blocks some models emit.
	thinkingPattern = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
	// codeBlockPattern matches a fenced block: ```json { ... } ```
	codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	// scoreObjectPattern finds an object span carrying the scoring key,
	// used when braces appear outside the actual payload.
	scoreObjectPattern = regexp.MustCompile(`(?s)\{[^{}]*"sub_dimension".*\}`)
	// missingCommaString fixes `"a"\n"b"` array elements.
	missingCommaString = regexp.MustCompile(`"\s*\n\s*"`)
	// missingCommaKey fixes a value string running straight into the
	// next key.
	missingCommaKey = regexp.MustCompile(`"\s*\n\s*([a-zA-Z_])`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	// blockCommentPattern removes /* ... */ comments.
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ExtractJSON pulls the most plausible JSON object out of an LLM
// response: fenced code block first, then the outermost brace span,
// then any object containing the scoring key. Returns "" when no
// candidate exists.
func ExtractJSON(content string) string {
	cleaned := strings.TrimSpace(thinkingPattern.ReplaceAllString(content, ""))

	if m := codeBlockPattern.FindStringSubmatch(cleaned); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	first := strings.IndexByte(cleaned, '{')
	last := strings.LastIndexByte(cleaned, '}')
	if first != -1 && last > first {
		return cleaned[first : last+1]
	}

	if m := scoreObjectPattern.FindString(cleaned); m != "" {
		return m
	}
	return ""
}

// RepairJSON fixes the syntax defects models commonly produce: missing
// commas between strings or before keys, trailing commas, and JS-style
// comments. Comments are stripped string-aware so URLs survive.
func RepairJSON(raw string) string {
	result := missingCommaString.ReplaceAllString(raw, "\",\n\"")
	result = missingCommaKey.ReplaceAllString(result, "\",\n${1}")
	result = blockCommentPattern.ReplaceAllString(result, "")

	lines := strings.Split(result, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result = strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(result, "${1}")
}

// stripLineComment removes a // comment from a line, respecting string
// values so "http://..." is left alone.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
