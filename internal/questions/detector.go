// Package questions scans the worker's final text for interactive
// question markers and emits a structured prompt for the UI to answer,
// so the job can pause instead of returning a premature response.
package questions

import (
	"regexp"
	"strconv"
	"strings"

	"relaywatch/pkg/patterns"
)

// Type distinguishes an open-ended question from a multiple-choice one.
type Type string

const (
	TypeOpen   Type = "open"
	TypeChoice Type = "choice"
)

// Option is one selectable answer for a choice-type question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is one detected prompt the worker is waiting on.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    Type     `json:"type"`
	Options []Option `json:"options,omitempty"`
}

// The option/block patterns below match only the *marker* that opens an
// item (a numbered line, a "**Qn:**" label, a "- (a)" sub-bullet) rather
// than the marker plus its body. RE2 has no lookahead, so a body written
// as a lazy ".+?" followed by a non-capturing terminator alternation
// actually consumes that terminator as part of the match — the next
// item's own marker is then missing from the remaining text and FindAll
// skips it. Matching markers only and slicing the body in Go (bodyAfter)
// sidesteps that: each marker match consumes nothing beyond itself, so
// every marker is still there for FindAllStringSubmatchIndex to find.
const (
	askBlockPattern    = `(?s)\[\[ASK\]\](.*?)\[\[/ASK\]\]`
	askOptionPattern   = `(?im)^[ \t]*(?:(\d+)|([a-z]))[.):]\s*`
	numberedOptPattern = `(?im)^[ \t]*(?:Option\s*)?(\d+)[.):]\s*`
	qBlockPattern      = `\*\*(?:Q(\d+):|Answer:)\*\*\s*`
	qSubOptionPattern  = `[-•]\s*\(([a-z])\)\s*`
)

// optionIndicators are the phrases that mark text as an implicit
// multiple-choice prompt even without explicit [[ASK]] markers.
var optionIndicators = []string{
	`which (?:option|approach|one|would you)`,
	`would you (?:like|prefer)`,
	`please (?:choose|select|pick)`,
	`what (?:would you|do you) (?:prefer|like|want)`,
	`do you want me to`,
	`should i`,
	`let me know (?:which|if|what)`,
}

var indicatorPattern = `(?i)` + strings.Join(optionIndicators, "|")

// cache is the process-wide compiled-regex cache (pkg/patterns); every
// pattern this detector uses is compiled once and reused across calls.
var cache = patterns.GetGlobal()

func askBlockRe() *regexp.Regexp     { return cache.MustCompile(askBlockPattern) }
func askOptionRe() *regexp.Regexp    { return cache.MustCompile(askOptionPattern) }
func numberedOptRe() *regexp.Regexp  { return cache.MustCompile(numberedOptPattern) }
func qBlockRe() *regexp.Regexp       { return cache.MustCompile(qBlockPattern) }
func qSubOptionRe() *regexp.Regexp   { return cache.MustCompile(qSubOptionPattern) }

// Detect applies the three detection passes in order (explicit markers,
// option-prompt heuristic, embedded Q<n> blocks); the first pass that
// matches anything wins. Returns the question list and whether the job
// should pause (should_wait).
func Detect(text string) ([]Question, bool) {
	if qs, wait := detectAskMarkers(text); wait {
		return qs, wait
	}
	if qs, wait := detectOptionHeuristic(text); wait {
		return qs, wait
	}
	return detectQBlocks(text)
}

func detectAskMarkers(text string) ([]Question, bool) {
	matches := askBlockRe().FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	var qs []Question
	for i, m := range matches {
		content := strings.TrimSpace(m[1])
		opts := parseOptions(content, askOptionRe())
		q := Question{ID: idFor(i + 1), Text: content, Type: TypeOpen}
		if len(opts) >= 2 {
			q.Type = TypeChoice
			q.Options = opts
		}
		qs = append(qs, q)
	}
	return qs, true
}

func detectOptionHeuristic(text string) ([]Question, bool) {
	if !cache.MustCompile(indicatorPattern).MatchString(text) {
		return nil, false
	}

	ms := findMarkers(numberedOptRe(), text)
	if len(ms) < 2 {
		return nil, false
	}

	opts := make([]Option, 0, len(ms))
	for i, m := range ms {
		opts = append(opts, Option{Key: m.groups[0], Text: truncate(bodyAfter(text, ms, i, true), 200)})
		if len(opts) == 6 {
			break
		}
	}

	return []Question{{
		ID:      "Q1",
		Text:    "Please select an option:",
		Type:    TypeChoice,
		Options: opts,
	}}, true
}

func detectQBlocks(text string) ([]Question, bool) {
	ms := findMarkers(qBlockRe(), text)
	if len(ms) == 0 {
		return nil, false
	}

	var qs []Question
	for i, m := range ms {
		if m.groups[0] == "" {
			continue // "**Answer:**" marker — terminates the previous block, starts nothing
		}
		content := bodyAfter(text, ms, i, false)
		q := Question{ID: idFor(mustAtoi(m.groups[0])), Text: content, Type: TypeOpen}

		subs := findMarkers(qSubOptionRe(), content)
		if len(subs) > 0 {
			opts := make([]Option, 0, len(subs))
			for j, s := range subs {
				opts = append(opts, Option{Key: s.groups[0], Text: bodyAfter(content, subs, j, true)})
			}
			q.Type = TypeChoice
			q.Options = opts
		}
		qs = append(qs, q)
	}
	if len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

// parseOptions extracts numbered/lettered option lines from content
// using re, returning nil if fewer than 2 are found (the caller decides
// the open-vs-choice threshold).
func parseOptions(content string, re *regexp.Regexp) []Option {
	ms := findMarkers(re, content)
	if len(ms) < 2 {
		return nil
	}
	opts := make([]Option, 0, len(ms))
	for i, m := range ms {
		key := m.groups[0]
		if key == "" {
			key = m.groups[1]
		}
		opts = append(opts, Option{Key: key, Text: bodyAfter(content, ms, i, false)})
	}
	return opts
}

// marker is one match of a marker-only regex (the opening token of an
// option line, a "**Qn:**" label, ...): its span plus captured groups.
// The item's body isn't part of the match — see the comment on the
// pattern constants above — so callers slice it out with bodyAfter.
type marker struct {
	start, end int
	groups     []string
}

func findMarkers(re *regexp.Regexp, s string) []marker {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	out := make([]marker, 0, len(idx))
	for _, m := range idx {
		groups := make([]string, len(m)/2-1)
		for i := range groups {
			a, b := m[2+2*i], m[3+2*i]
			if a >= 0 {
				groups[i] = s[a:b]
			}
		}
		out = append(out, marker{start: m[0], end: m[1], groups: groups})
	}
	return out
}

// bodyAfter returns the text following marker ms[i] up to the start of
// the next marker (or the end of s), trimmed, and optionally cut short
// at the first blank line.
func bodyAfter(s string, ms []marker, i int, stopAtBlankLine bool) string {
	end := len(s)
	if i+1 < len(ms) {
		end = ms[i+1].start
	}
	body := s[ms[i].end:end]
	if stopAtBlankLine {
		if j := strings.Index(body, "\n\n"); j >= 0 {
			body = body[:j]
		}
	}
	return strings.TrimSpace(body)
}

func idFor(n int) string {
	return "Q" + strconv.Itoa(n)
}

// mustAtoi parses a digit string known-good from a regex capture group;
// a parse failure here means the pattern itself is wrong.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic("questions: invalid numeric capture: " + s)
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ShouldPromote reports whether a detected should_wait pause is actually
// allowed for the given job type (SPEC_FULL.md invariant 7): the job
// type must not be one of the pause-forbidden types.
func ShouldPromote(shouldWait bool, pausesForbidden bool) bool {
	return shouldWait && !pausesForbidden
}
