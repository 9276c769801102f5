package llm

import (
	"regexp"
	"strings"
)

// Models wrap JSON in markdown fences, annotate it with // comments,
// leave trailing commas, and substitute typographic quotes. The helpers
// here recover a parseable document from such output.

var (
	fencedObjectRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	fencedArrayRe  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	bareObjectRe   = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	bareArrayRe    = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the first JSON object in an LLM response, with
// comments and trailing commas removed. Empty when none is found.
func ExtractJSON(content string) string {
	return extract(content, fencedObjectRe, bareObjectRe)
}

// ExtractJSONArray is ExtractJSON for top-level arrays.
func ExtractJSONArray(content string) string {
	return extract(content, fencedArrayRe, bareArrayRe)
}

// extract prefers a fenced block over a bare match: prose around a
// fence often contains braces of its own.
func extract(content string, fenced, bare *regexp.Regexp) string {
	var raw string
	if m := fenced.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = bare.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return scrub(raw)
}

// scrub strips // comments outside string values, then trailing commas.
func scrub(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if at := commentStart(line); at >= 0 {
			lines[i] = strings.TrimRight(line[:at], " \t")
		}
	}
	return trailingComma.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// commentStart returns the index of a // comment outside any string
// value, or -1. Escapes are honored so "say \"//\"" keeps its content,
// and URLs inside values are never mistaken for comments.
func commentStart(line string) int {
	if !strings.Contains(line, "//") {
		return -1
	}

	inString := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case inString && c == '\\':
			i++ // skip the escaped character
		case c == '"':
			inString = !inString
		case !inString && c == '/' && i+1 < len(line) && line[i+1] == '/':
			return i
		}
	}
	return -1
}

// quoteReplacer maps the typographic quotes some models emit to ASCII.
var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// NormalizeQuotes replaces typographic quotes with ASCII equivalents.
// A second-chance pass for documents that fail to parse; on valid JSON
// it can corrupt string values that legitimately contain curly quotes.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}
