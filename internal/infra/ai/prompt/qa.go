package prompt

import "fmt"

// DefaultAppID is the placeholder app identifier written into generated flows.
const DefaultAppID = "com.example"

// GetQAPrompt is the fixed instruction sent with every recording.
func GetQAPrompt() string {
	return fmt.Sprintf(`You are an expert QA automation engineer. Analyze the attached screen recording of a mobile app.
Return exactly one valid JSON object (no markdown fences, no commentary) with these two string fields:

1. "human_readable_report": a Markdown table with the columns Step, Action and Detail, one row per user interaction seen in the video.
2. "maestro_yaml": a Maestro (mobile.dev) flow that reproduces the interactions. Start with "appId: %s" followed by "---" and a list of commands. Select elements by visible text or by id.

JSON schema:
{ "human_readable_report": "...", "maestro_yaml": "..." }`, DefaultAppID)
}
