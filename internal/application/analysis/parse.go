package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
	domain "github.com/bryanwahyu/screen-analyst/internal/domain/analysis"
)

type rawResult struct {
	HumanReadableReport *string `json:"human_readable_report"`
	MaestroYAML         *string `json:"maestro_yaml"`
}

// ParseResult decodes the model output into a Result. Both fields must be
// present strings, anything else is an ErrGeneration. Unknown fields are ignored.
func ParseResult(raw string) (domain.Result, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return domain.Result{}, fmt.Errorf("%w: empty response", ai.ErrGeneration)
	}

	var r rawResult
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return domain.Result{}, fmt.Errorf("%w: malformed response: %v", ai.ErrGeneration, err)
	}

	var missing []string
	if r.HumanReadableReport == nil {
		missing = append(missing, "human_readable_report")
	}
	if r.MaestroYAML == nil {
		missing = append(missing, "maestro_yaml")
	}
	if len(missing) > 0 {
		return domain.Result{}, fmt.Errorf("%w: response missing %s", ai.ErrGeneration, strings.Join(missing, ", "))
	}

	return domain.Result{
		HumanReadableReport: *r.HumanReadableReport,
		MaestroYAML:         *r.MaestroYAML,
	}, nil
}

// stripFence removes a surrounding ```json ... ``` block if the model added one.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
