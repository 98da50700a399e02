package drone

import (
	"encoding/json"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Result is a normalized tool invocation outcome: its text content
// blocks concatenated and, when the combined text parses as JSON, also
// exposed as a structured value.
type Result struct {
	Text  string
	JSON  map[string]any
	IsErr bool
}

// parseResult concatenates a CallToolResult's text content blocks and
// parses them as JSON when possible, falling back to {"text": ...}.
func parseResult(raw *mcpsdk.CallToolResult) *Result {
	var parts []string
	for _, c := range raw.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	r := &Result{Text: text, IsErr: raw.IsError}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		r.JSON = parsed
	} else {
		r.JSON = map[string]any{"text": text}
	}
	return r
}
