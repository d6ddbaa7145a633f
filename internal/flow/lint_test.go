package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLint_ValidFlow(t *testing.T) {
	src := `appId: com.example
---
- launchApp
- tapOn: "Login"
- inputText: "user@example.com"
- tapOn:
    id: "submit_button"
- assertVisible: "Welcome"
`
	r := Lint(src)

	assert.Empty(t, r.Warnings)
	assert.Equal(t, "com.example", r.Config.AppID)
	assert.Equal(t, []string{"launchApp", "tapOn", "inputText", "tapOn", "assertVisible"}, r.Commands)
}

func TestLint_Warnings(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "  ", "flow is empty"},
		{"invalid yaml", "appId: [unterminated", "invalid yaml"},
		{"missing app id", "name: x\n---\n- launchApp\n", "missing appId"},
		{"no separator", "- launchApp\n- back\n", "no command list"},
		{"unknown command", "appId: a\n---\n- teleport: home\n", `unknown command "teleport"`},
		{"not a list", "appId: a\n---\ntapOn: x\n", "not a list"},
		{"no commands", "appId: a\n---\n[]\n", "no commands"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Lint(tc.src)
			found := false
			for _, w := range r.Warnings {
				if strings.Contains(w, tc.want) {
					found = true
				}
			}
			assert.True(t, found, "warnings %v should mention %q", r.Warnings, tc.want)
		})
	}
}

func TestLint_NoSeparatorStillListsCommands(t *testing.T) {
	r := Lint("- launchApp\n- back\n")
	assert.Equal(t, []string{"launchApp", "back"}, r.Commands)
}
