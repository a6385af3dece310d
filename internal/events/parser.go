// Package events interprets the worker's line-delimited JSON event
// protocol. It is strictly a pure function (bytes-so-far) -> (activity,
// text): reusable for tests and for both the CLI backend and the
// alternate HTTPS backend (SPEC_FULL.md §4.E, §9).
package events

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// contentItem is one element of an assistant/user message's content array.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
	ID   string `json:"id"`
	Input map[string]any `json:"input"`
}

type message struct {
	Content []contentItem `json:"content"`
}

// rawEvent is the tagged-variant envelope for every recognized shape. A
// catch-all default case (no `type` match) advances the stream without
// effect; unknown event types are never treated as errors.
type rawEvent struct {
	Type    string  `json:"type"`
	Message message `json:"message"`
	Result  string  `json:"result"`
}

// agentActivity records one Task sub-agent started in the stream so the
// parser can report "<N> agents working" once more than one has started.
// Entries are never removed when a sub-agent finishes, so N counts every
// Task started so far, not only those still running.
type agentActivity struct {
	id   string
	kind string
	desc string
}

// Accumulator is the parser's running state across a stream's lifetime.
// Both outputs it derives — Activity() and Text() — are monotone: text
// only grows, activity may change but is always derived from the
// longest prefix seen so far.
type Accumulator struct {
	buf      strings.Builder // unterminated trailing partial line
	activity string
	text     strings.Builder
	agents   []agentActivity
	complete bool
}

// NewAccumulator returns an empty parser state with the default activity.
func NewAccumulator() *Accumulator {
	return &Accumulator{activity: "Starting..."}
}

// Feed appends a chunk of raw bytes from the pseudo-terminal, splitting
// on newlines and parsing each complete line as one event. A partial
// trailing line (no terminating '\n' yet) is held until more data
// arrives, exactly mirroring the source's line-buffered JSON consumption.
func (a *Accumulator) Feed(chunk []byte) {
	a.buf.WriteString(string(chunk))
	data := a.buf.String()

	lines := strings.Split(data, "\n")
	// The last element is either empty (data ended in '\n') or a partial
	// line to hold for the next Feed call.
	complete, trailing := lines[:len(lines)-1], lines[len(lines)-1]

	a.buf.Reset()
	a.buf.WriteString(trailing)

	for _, line := range complete {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a.applyLine(line)
	}
}

func (a *Accumulator) applyLine(line string) {
	var ev rawEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		// Non-JSON or malformed line: advance without effect, per the
		// non-goal that the parser never pretends to understand
		// narrative text.
		return
	}

	switch ev.Type {
	case "assistant":
		for _, item := range ev.Message.Content {
			switch item.Type {
			case "tool_use":
				a.activity = activityForTool(item, &a.agents)
			case "text":
				a.text.WriteString(item.Text)
			}
		}
	case "user":
		// Tool result returned; does not change activity per §4.E.
	case "result":
		a.activity = "Complete"
		a.complete = true
		if ev.Result != "" && a.text.Len() == 0 {
			a.text.WriteString(ev.Result)
		}
	default:
		// Unknown event type: advance without effect.
	}
}

// Activity returns the current short activity string.
func (a *Accumulator) Activity() string { return a.activity }

// Text returns the accumulated final text seen so far.
func (a *Accumulator) Text() string { return a.text.String() }

// Complete reports whether a terminal `result` event has been observed.
func (a *Accumulator) Complete() bool { return a.complete }

func inputString(item contentItem, key string) string {
	if v, ok := item.Input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// activityForTool derives the activity phrase for one tool_use content
// item, per the tool-to-activity table in SPEC_FULL.md §4.E. agents is
// appended to for every Task sub-agent started, for the multi-agent phrase.
func activityForTool(item contentItem, agents *[]agentActivity) string {
	switch item.Name {
	case "Read":
		return fmt.Sprintf("Reading file `%s`", path.Base(inputString(item, "file_path")))
	case "Edit":
		return fmt.Sprintf("Editing file `%s`", path.Base(inputString(item, "file_path")))
	case "Write":
		return fmt.Sprintf("Creating file `%s`", path.Base(inputString(item, "file_path")))
	case "Bash":
		return bashActivity(item)
	case "Grep":
		pattern := truncate(inputString(item, "pattern"), 40)
		if p := inputString(item, "path"); p != "" {
			return fmt.Sprintf("Searching for '%s' in %s", pattern, path.Base(p))
		}
		return fmt.Sprintf("Searching codebase for '%s'", pattern)
	case "Glob":
		return fmt.Sprintf("Finding files matching %s", truncate(inputString(item, "pattern"), 40))
	case "Task":
		return taskActivity(item, agents)
	case "WebFetch":
		url := inputString(item, "url")
		if url == "" {
			return "Fetching web page"
		}
		rest := strings.TrimPrefix(url, "https://")
		rest = strings.TrimPrefix(rest, "http://")
		domain := strings.SplitN(rest, "/", 2)[0]
		return fmt.Sprintf("Fetching content from `%s`", truncate(domain, 30))
	case "WebSearch":
		return fmt.Sprintf("Searching the web for `%s`", truncate(inputString(item, "query"), 40))
	case "AskUserQuestion":
		return "Waiting for your response"
	case "TodoWrite":
		return "Updating task checklist"
	case "EnterPlanMode":
		return "Entering planning mode"
	case "ExitPlanMode":
		return "Plan ready for review"
	default:
		return fmt.Sprintf("Using %s", item.Name)
	}
}

func bashActivity(item contentItem) string {
	cmd := inputString(item, "command")
	if desc := inputString(item, "description"); desc != "" {
		return truncate(desc, 60)
	}
	fields := strings.Fields(cmd)
	switch {
	case strings.HasPrefix(cmd, "git "):
		if len(fields) > 1 {
			return "Running git " + fields[1]
		}
		return "Running git command"
	case strings.HasPrefix(cmd, "npm ") || strings.HasPrefix(cmd, "yarn "):
		sub := ""
		if len(fields) > 1 {
			sub = fields[1]
		}
		return "Running " + fields[0] + " " + sub
	case strings.HasPrefix(cmd, "python") || strings.HasPrefix(cmd, "node"):
		return "Executing script"
	default:
		return "Running command: " + truncate(cmd, 50)
	}
}

func taskActivity(item contentItem, agents *[]agentActivity) string {
	desc := inputString(item, "description")
	prompt := inputString(item, "prompt")
	agentType := inputString(item, "subagent_type")
	if agentType == "" {
		agentType = "general"
	}
	shortID := truncate(item.ID, 8)

	var kind string
	switch agentType {
	case "Explore":
		kind = fmt.Sprintf("Explorer agent (%s)", shortID)
	case "Plan":
		kind = fmt.Sprintf("Planning agent (%s)", shortID)
	case "general-purpose":
		kind = fmt.Sprintf("Research agent (%s)", shortID)
	default:
		kind = fmt.Sprintf("Agent %s", shortID)
	}

	var phrase string
	switch {
	case desc != "":
		phrase = fmt.Sprintf("%s: %s", kind, desc)
	case prompt != "":
		firstLine := strings.SplitN(prompt, "\n", 2)[0]
		phrase = fmt.Sprintf("%s: %s", kind, truncate(firstLine, 60))
	default:
		phrase = fmt.Sprintf("Starting %s", kind)
	}

	if desc == "" {
		desc = "working"
	}
	*agents = append(*agents, agentActivity{id: shortID, kind: agentType, desc: desc})
	if len(*agents) > 1 {
		last := (*agents)[len(*agents)-1]
		return fmt.Sprintf("%d agents working: %s", len(*agents), truncate(last.desc, 30))
	}
	return phrase
}
