package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"relaywatch/internal/queue"
	"relaywatch/internal/session"
)

func newSessionID() string { return uuid.NewString() }

// modelMap translates the queue's short model aliases into concrete CLI
// model identifiers (SPEC_FULL.md §4.G).
var modelMap = map[string]string{
	"opus":   "claude-opus-4-6",
	"sonnet": "claude-sonnet-4-5-20250929",
	"haiku":  "claude-haiku-4-5-20251001",
	"claude": "claude-opus-4-6",
}

const defaultModelID = "claude-sonnet-4-20250514"

func resolveModelID(model string) string {
	if id, ok := modelMap[model]; ok {
		return id
	}
	return defaultModelID
}

const universalInstructions = `

---
IMPORTANT RESPONSE GUIDELINES:
- When providing URLs in your response, ALWAYS format them as clickable markdown links: [http://example.com](http://example.com) -- never as plain text URLs.
- If you create any web pages, HTML files, or web applications, deploy them to the shared preview directory so they are viewable through the preview server. For multi-page sites, put the main page as index.html.
---

`

var screenshotKeywords = []string{"playwright", "test", "screenshot", "browser", "login", "ui test"}

var mockupKeywords = []string{
	"mockup", "mock up", "mock-up", "design mockup", "html mockup",
	"css mockup", "web design", "ui mockup", "landing page design",
	"page mockup", "create a design", "wireframe", "prototype design",
	"layout mockup", "design a page", "design a website", "page design",
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func screenshotInstructions(jobID, screenshotsDir string) string {
	return fmt.Sprintf(`

---
IMPORTANT: When running Playwright or browser tests, ALWAYS capture screenshots to document your testing:

1. Save screenshots to: %[1]s/
2. Use descriptive filenames like: %[2]s_step1_login_page.png, %[2]s_step2_after_login.png
3. Take screenshots at key moments: before actions, after actions, on errors
4. After testing, list the screenshots you captured so they can be displayed to the user
---
`, screenshotsDir, jobID)
}

var urlRe = regexp.MustCompile(`https?://[^\s]+`)

func mockupInstructions(jobID, screenshotsDir, tempDir, message string, imagePaths []string) string {
	var b strings.Builder
	b.WriteString("\n\n---\nDESIGN MOCKUP WORKFLOW - follow these steps precisely:\n\n")

	if m := urlRe.FindString(message); m != "" {
		fmt.Fprintf(&b, "**URL REFERENCE WORKFLOW (do this FIRST):** the user wants designs based on %s. Screenshot it to %s/%s_reference.png and use that as the visual basis for your variations.\n\n", m, screenshotsDir, jobID)
	}
	if len(imagePaths) > 0 {
		b.WriteString("**SCREENSHOT REPLICATION WORKFLOW (do this FIRST):** the user attached screenshot(s) to replicate/restyle:\n")
		for _, p := range imagePaths {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `**STEP 1** - generate 3 dramatically distinct, self-contained HTML design variations ("Bold & Dark", "Light & Clean", "Creative & Colorful"). Save to:
  %[1]s/%[2]s_mockup_a.html
  %[1]s/%[2]s_mockup_b.html
  %[1]s/%[2]s_mockup_c.html

**STEP 2** - screenshot each with Playwright to %[3]s/%[2]s_mockup_{a,b,c}.png.

**STEP 3** - self-review each screenshot for layout, typography, color, and polish.

**STEP 4** - refine the strongest into a final version: %[1]s/%[2]s_mockup_final.html, screenshot to %[3]s/%[2]s_mockup_final.png.

**STEP 5** - list all screenshot paths in your response and include the final HTML source.
---

`, tempDir, jobID, screenshotsDir)
	return b.String()
}

// BuildResult is everything the caller needs to spawn the child process.
type BuildResult struct {
	Args        []string
	FullMessage string
}

// BuildCommand assembles the CLI command for a Claude-backed job,
// including model selection, session continuity, and the policy prompts
// injected ahead of the user's message (SPEC_FULL.md §4.G).
func BuildCommand(job *queue.Job, registry *session.Registry, imagePaths []string, screenshotsDir, tempDir string) (BuildResult, error) {
	modelID := resolveModelID(job.Model)

	args := []string{
		"nice", "-n", "10",
		"claude",
		"--dangerously-skip-permissions",
		"--model", modelID,
		"--output-format", "stream-json",
		"--verbose",
	}

	jt := job.EffectiveJobType()
	project := job.EffectiveProject()

	if jt == queue.JobTypeFormat {
		formatSessionID := newSessionID()
		args = append(args, "--session-id", formatSessionID, "--max-turns", "1")
	} else {
		sid, isNew, err := registry.GetOrCreate(project)
		if err != nil {
			return BuildResult{}, err
		}
		if isNew {
			args = append(args, "--session-id", sid)
		} else {
			args = append(args, "--resume", sid)
		}
	}

	fullMessage := job.Message

	if jt == queue.JobTypeChat {
		fullMessage = universalInstructions + fullMessage
	}

	if len(imagePaths) > 0 {
		var b strings.Builder
		b.WriteString("\n\n---\nThe user has attached the following image(s). Please read and analyze them:\n")
		for _, p := range imagePaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		fullMessage = b.String() + "\n" + fullMessage
	}

	if jt == queue.JobTypeChat && containsAny(job.Message, screenshotKeywords) {
		fullMessage = screenshotInstructions(job.ID, screenshotsDir) + "\n" + fullMessage
	}

	if jt == queue.JobTypeChat && containsAny(job.Message, mockupKeywords) {
		fullMessage = mockupInstructions(job.ID, screenshotsDir, tempDir, job.Message, imagePaths) + "\n" + fullMessage
	}

	if job.ContextAnswers != "" {
		fullMessage = fmt.Sprintf("%s\n\n---\nPrevious answers from user:\n%s", fullMessage, job.ContextAnswers)
	}

	args = append(args, "-p", fullMessage)
	return BuildResult{Args: args, FullMessage: fullMessage}, nil
}
