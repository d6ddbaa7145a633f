// Package flow inspects generated Maestro flow files.
package flow

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the header document of a flow.
type Config struct {
	AppID string            `yaml:"appId"`
	URL   string            `yaml:"url"`
	Name  string            `yaml:"name"`
	Tags  []string          `yaml:"tags"`
	Env   map[string]string `yaml:"env"`
}

// Report summarizes a flow. Lint never rejects a flow, it only collects warnings.
type Report struct {
	Config   Config
	Commands []string
	Warnings []string
}

var knownCommands = map[string]bool{
	"launchApp": true, "stopApp": true, "killApp": true, "clearState": true, "clearKeychain": true,
	"tapOn": true, "doubleTapOn": true, "longPressOn": true,
	"inputText": true, "inputRandomText": true, "inputRandomEmail": true, "inputRandomNumber": true, "inputRandomPersonName": true,
	"eraseText": true, "copyTextFrom": true, "pasteText": true, "hideKeyboard": true,
	"assertVisible": true, "assertNotVisible": true, "assertTrue": true,
	"scroll": true, "scrollUntilVisible": true, "swipe": true, "back": true, "pressKey": true,
	"openLink": true, "takeScreenshot": true, "waitForAnimationToEnd": true, "extendedWaitUntil": true,
	"runFlow": true, "runScript": true, "evalScript": true, "repeat": true, "retry": true,
	"setLocation": true, "travel": true, "startRecording": true, "stopRecording": true, "addMedia": true,
}

// Lint parses src as a two-document Maestro flow.
func Lint(src string) Report {
	var r Report
	if strings.TrimSpace(src) == "" {
		r.Warnings = append(r.Warnings, "flow is empty")
		return r
	}

	dec := yaml.NewDecoder(strings.NewReader(src))
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("invalid yaml: %v", err))
			return r
		}
		docs = append(docs, &n)
	}

	if len(docs) < 2 {
		r.Warnings = append(r.Warnings, "flow has no command list after the config document")
		if len(docs) == 1 && body(docs[0]).Kind == yaml.SequenceNode {
			r.Commands, r.Warnings = commands(body(docs[0]), r.Warnings)
			r.Warnings = append(r.Warnings, "missing appId")
			return r
		}
	}
	if len(docs) > 0 {
		if err := docs[0].Decode(&r.Config); err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("config document: %v", err))
		}
	}
	if r.Config.AppID == "" && r.Config.URL == "" {
		r.Warnings = append(r.Warnings, "missing appId")
	}
	if len(docs) >= 2 {
		seq := body(docs[1])
		if seq.Kind != yaml.SequenceNode {
			r.Warnings = append(r.Warnings, "commands document is not a list")
			return r
		}
		r.Commands, r.Warnings = commands(seq, r.Warnings)
		if len(r.Commands) == 0 {
			r.Warnings = append(r.Warnings, "flow has no commands")
		}
	}
	return r
}

func body(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

func commands(seq *yaml.Node, warnings []string) ([]string, []string) {
	var out []string
	for i, item := range seq.Content {
		var name string
		switch item.Kind {
		case yaml.ScalarNode:
			name = item.Value
		case yaml.MappingNode:
			if len(item.Content) >= 2 {
				name = item.Content[0].Value
			}
			if len(item.Content) > 2 {
				warnings = append(warnings, fmt.Sprintf("step %d has more than one command", i+1))
			}
		}
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("step %d is not a command", i+1))
			continue
		}
		if !knownCommands[name] {
			warnings = append(warnings, fmt.Sprintf("step %d: unknown command %q", i+1, name))
		}
		out = append(out, name)
	}
	return out, warnings
}
