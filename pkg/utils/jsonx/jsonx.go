// Package jsonx extracts and parses JSON from LLM output. Models are
// instructed to answer with a fenced ```json block, but frequently emit
// bare JSON or surround it with prose, so parsing is always best-effort
// with a caller-supplied fallback.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractBlock returns the content of the first fenced ```json block in
// text. If no fenced block exists, the whole text is returned so the
// caller can still attempt to parse bare JSON.
func ExtractBlock(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// Unmarshal parses ExtractBlock(text) into out. It reports whether
// parsing succeeded; on failure out is left untouched so the caller's
// defaults survive.
func Unmarshal(text string, out any) bool {
	raw := ExtractBlock(text)
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}
