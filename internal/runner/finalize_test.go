package runner

import (
	"strings"
	"testing"
)

func TestSanitizeResponseStripsAnsiAndControlBytes(t *testing.T) {
	raw := "\x1b[32mHello\x1b[0m \x1b]0;title\x07World\x01\x02"
	got := sanitizeResponse(raw)
	if got != "Hello World" {
		t.Errorf("sanitizeResponse = %q, want %q", got, "Hello World")
	}
}

func TestSanitizeResponseTrimsWhitespace(t *testing.T) {
	if got := sanitizeResponse("  padded  \n"); got != "padded" {
		t.Errorf("sanitizeResponse = %q", got)
	}
}

func TestDetectAuthFailureMatchesKnownPattern(t *testing.T) {
	msg, found := detectAuthFailure("some preamble\ninvalid_api_key: your key is bad\n")
	if !found {
		t.Fatal("expected auth failure detected")
	}
	if !strings.Contains(msg, "invalid_api_key") {
		t.Errorf("message missing matched pattern: %q", msg)
	}
}

func TestDetectAuthFailureNoMatch(t *testing.T) {
	_, found := detectAuthFailure("everything worked fine")
	if found {
		t.Error("expected no auth failure detected")
	}
}

func TestExitErrorResponseIncludesCodeAndOutput(t *testing.T) {
	got := exitErrorResponse(1, "boom")
	if !strings.Contains(got, "code 1") || !strings.Contains(got, "boom") {
		t.Errorf("exitErrorResponse = %q", got)
	}
}

func TestExitErrorResponseHandlesEmptyOutput(t *testing.T) {
	got := exitErrorResponse(2, "   ")
	if !strings.Contains(got, "(no output)") {
		t.Errorf("exitErrorResponse = %q, want no-output placeholder", got)
	}
}

func TestTimeoutResponseMentionsMinutes(t *testing.T) {
	got := timeoutResponse(30)
	if !strings.Contains(got, "30 minutes") {
		t.Errorf("timeoutResponse = %q", got)
	}
}
