package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
)

// Models habitually wrap JSON answers in a markdown code fence even when told
// not to. Strip exactly that wrapper before parsing.
var (
	reFenceOpen  = regexp.MustCompile("^```json\\s*")
	reFenceClose = regexp.MustCompile("```\\s*$")
)

// StripCodeFence removes an optional leading ```json and trailing ``` wrapper.
func StripCodeFence(s string) string {
	s = reFenceOpen.ReplaceAllString(s, "")
	s = reFenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseModelJSON is the untrusted-boundary parser for the final pass output.
// It never panics and never lets a decode error escape undecorated: a
// malformed response surfaces as a distinct, per-document error kind.
func ParseModelJSON(responseText string) (map[string]any, error) {
	cleaned := StripCodeFence(responseText)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, common.NewAppError("JSON_PARSE_ERROR",
			fmt.Sprintf("JSON parse error: %v", err), common.ErrDocument)
	}
	// JSON null unmarshals into a nil map without error; callers write into
	// the result, so it must be an actual object.
	if parsed == nil {
		return nil, common.NewAppError("JSON_PARSE_ERROR",
			"JSON parse error: response is not a JSON object", common.ErrDocument)
	}
	return parsed, nil
}
