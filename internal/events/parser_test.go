package events

import "testing"

func TestHappyPathTextAndResult(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"hi there"}]}}` + "\n"))
	a.Feed([]byte(`{"type":"result","result":"hi there"}` + "\n"))

	if a.Text() != "hi there" {
		t.Errorf("Text() = %q", a.Text())
	}
	if a.Activity() != "Complete" {
		t.Errorf("Activity() = %q", a.Activity())
	}
	if !a.Complete() {
		t.Errorf("expected Complete()")
	}
}

func TestResultEventOnlyUsedWhenNoAssistantText(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"result","result":"final answer"}` + "\n"))
	if a.Text() != "final answer" {
		t.Errorf("Text() = %q, want result field used as fallback", a.Text())
	}
}

func TestResultEventIgnoredWhenAssistantTextPresent(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"already have text"}]}}` + "\n"))
	a.Feed([]byte(`{"type":"result","result":"duplicate"}` + "\n"))
	if a.Text() != "already have text" {
		t.Errorf("Text() = %q, want original assistant text preserved", a.Text())
	}
}

func TestPartialLineHeldAcrossFeedCalls(t *testing.T) {
	a := NewAccumulator()
	full := `{"type":"assistant","message":{"content":[{"type":"text","text":"split"}]}}` + "\n"
	a.Feed([]byte(full[:20]))
	if a.Text() != "" {
		t.Fatalf("partial line parsed prematurely: %q", a.Text())
	}
	a.Feed([]byte(full[20:]))
	if a.Text() != "split" {
		t.Errorf("Text() = %q after completing the line", a.Text())
	}
}

func TestToolActivityReadEditWrite(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a/b/main.go"}}]}}`, "Reading file `main.go`"},
		{`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Edit","input":{"file_path":"/a/b/main.go"}}]}}`, "Editing file `main.go`"},
		{`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Write","input":{"file_path":"/a/b/main.go"}}]}}`, "Creating file `main.go`"},
	}
	for _, c := range cases {
		a := NewAccumulator()
		a.Feed([]byte(c.line + "\n"))
		if a.Activity() != c.want {
			t.Errorf("Activity() = %q, want %q", a.Activity(), c.want)
		}
	}
}

func TestToolActivityGrep(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Grep","input":{"pattern":"TODO","path":"/a/b"}}]}}`, "Searching for 'TODO' in b"},
		{`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Grep","input":{"pattern":"TODO"}}]}}`, "Searching codebase for 'TODO'"},
	}
	for _, c := range cases {
		a := NewAccumulator()
		a.Feed([]byte(c.line + "\n"))
		if a.Activity() != c.want {
			t.Errorf("Activity() = %q, want %q", a.Activity(), c.want)
		}
	}
}

func TestBashActivityWithDescription(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls -la","description":"List files in the current directory"}}]}}` + "\n"))
	if a.Activity() != "List files in the current directory" {
		t.Errorf("Activity() = %q", a.Activity())
	}
}

func TestBashActivityGitPrefix(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"git status"}}]}}` + "\n"))
	if a.Activity() != "Running git status" {
		t.Errorf("Activity() = %q", a.Activity())
	}
}

func TestAskUserQuestionActivity(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"AskUserQuestion","input":{}}]}}` + "\n"))
	if a.Activity() != "Waiting for your response" {
		t.Errorf("Activity() = %q", a.Activity())
	}
}

func TestUnknownEventTypeAdvancesWithoutEffect(t *testing.T) {
	a := NewAccumulator()
	before := a.Activity()
	a.Feed([]byte(`{"type":"system","subtype":"init"}` + "\n"))
	if a.Activity() != before {
		t.Errorf("unknown event type changed activity: %q", a.Activity())
	}
	if a.Complete() {
		t.Errorf("unknown event type should not mark complete")
	}
}

func TestMalformedLineIgnored(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte("not json at all\n"))
	if a.Text() != "" || a.Complete() {
		t.Errorf("malformed line should be ignored, got text=%q complete=%v", a.Text(), a.Complete())
	}
}

func TestMultipleTaskAgentsReportCount(t *testing.T) {
	a := NewAccumulator()
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Task","id":"agent0001","input":{"subagent_type":"Explore","description":"scan repo"}}]}}` + "\n"))
	a.Feed([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Task","id":"agent0002","input":{"subagent_type":"Plan","description":"draft plan"}}]}}` + "\n"))
	if a.Activity() != "2 agents working: draft plan" {
		t.Errorf("Activity() = %q", a.Activity())
	}
}
