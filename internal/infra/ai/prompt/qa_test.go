package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetQAPrompt_DeclaresContract(t *testing.T) {
	p := GetQAPrompt()

	assert.Contains(t, p, "expert QA automation engineer")
	assert.Contains(t, p, `"human_readable_report"`)
	assert.Contains(t, p, `"maestro_yaml"`)
	assert.Contains(t, p, "Step, Action and Detail")
	assert.Contains(t, p, "appId: com.example")
}
