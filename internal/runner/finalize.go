package runner

import (
	"fmt"
	"strings"

	"relaywatch/pkg/patterns"
)

var (
	ansiCSIPattern = `\x1b\[[0-9;]*[a-zA-Z]`
	ansiOSCPattern = `\x1b\][^\x07]*\x07`
	ansiEscPattern = `\x1b.`
	ctrlPattern    = `[\x00-\x08\x0B\x0C\x0E-\x1F]`
)

// sanitizeResponse strips ANSI escape sequences and stray control bytes
// from a worker's raw PTY output, leaving the plain-text final response
// (SPEC_FULL.md §4.G finalize step).
func sanitizeResponse(raw string) string {
	cache := patterns.GetGlobal()
	raw = cache.MustCompile(ansiCSIPattern).ReplaceAllString(raw, "")
	raw = cache.MustCompile(ansiOSCPattern).ReplaceAllString(raw, "")
	raw = cache.MustCompile(ansiEscPattern).ReplaceAllString(raw, "")
	raw = cache.MustCompile(ctrlPattern).ReplaceAllString(raw, "")
	return strings.TrimSpace(raw)
}

// authFailurePatterns are substrings in raw worker output that indicate
// an API-key or quota problem rather than a genuine task response.
var authFailurePatterns = []string{
	"invalid_api_key", "authentication_error", "Invalid API key",
	"unauthorized", "401", "api_key", "expired",
	"Could not resolve API key", "ANTHROPIC_API_KEY",
	"overloaded_error", "rate_limit",
}

// detectAuthFailure scans raw output for a known auth/quota failure
// signature and, if found, returns a user-facing error response plus a
// truncated excerpt of the raw output for diagnosis.
func detectAuthFailure(rawOutput string) (string, bool) {
	lower := strings.ToLower(rawOutput)
	for _, p := range authFailurePatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			excerpt := rawOutput
			if len(excerpt) > 500 {
				excerpt = excerpt[:500]
			}
			return fmt.Sprintf("Error: Claude API key issue detected (%s). Please check/reset your API key and try again.\n\nRaw output: %s", p, excerpt), true
		}
	}
	return "", false
}

// exitErrorResponse formats the fallback response used when the child
// exited non-zero and no usable response was otherwise extracted.
func exitErrorResponse(exitCode int, rawOutput string) string {
	excerpt := rawOutput
	if len(excerpt) > 1000 {
		excerpt = excerpt[:1000]
	}
	if strings.TrimSpace(excerpt) == "" {
		excerpt = "(no output)"
	}
	return fmt.Sprintf("Error: Claude process exited with code %d.\n\nOutput: %s", exitCode, excerpt)
}

// timeoutResponse is the response written when a job is killed for
// exceeding the maximum runtime.
func timeoutResponse(maxRuntimeMinutes int) string {
	return fmt.Sprintf("Error: Job timed out after %d minutes. The task may be too complex or Claude may be stuck.", maxRuntimeMinutes)
}
