package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeArray locates the first JSON array in model output and decodes
// it into out. Model replies often wrap JSON in prose or code fences,
// so the array is carved out before decoding. Unvalidated dynamic
// structures never leave this boundary: a decode failure is an error
// the caller converts into its deterministic fallback.
func DecodeArray(text string, out interface{}) error {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON array in model output")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

// Lines splits model output into trimmed, non-empty lines with list
// markers and numbering stripped. Used by callers that request
// one-item-per-line replies.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*")
		for len(line) > 0 && (line[0] >= '0' && line[0] <= '9') {
			line = line[1:]
		}
		line = strings.TrimLeft(line, ".)")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
