// Package guard validates retrieved snippets and generated answers before
// they are trusted downstream. All checks are pure functions returning
// structured issue lists; policy violations are never raised as errors.
package guard

import (
	"regexp"
	"strings"
)

// Issue severities.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Issue codes.
const (
	CodePromptInjection       = "PROMPT_INJECTION_DETECTED"
	CodeMissingCitationTarget = "MISSING_CITATION_TARGET"
	CodeUnusedSource          = "UNUSED_SOURCE"
	CodeMissingSourcesSection = "MISSING_SOURCES_SECTION"
	CodeMissingSection        = "MISSING_SECTION"
)

// Issue is one structured finding from a guard check.
type Issue struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Snippet  string `json:"snippet,omitempty"`
}

// DefaultSnippetMaxLen bounds sanitized snippets before prompt interpolation.
const DefaultSnippetMaxLen = 500

// injectionPattern is one detection rule within a pattern family.
type injectionPattern struct {
	family string
	re     *regexp.Regexp
}

// The fixed pattern families scanned against every external snippet.
var injectionPatterns = []injectionPattern{
	// Instruction-override phrasing.
	{"instruction_override", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|context)`)},
	{"instruction_override", regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier)`)},
	{"instruction_override", regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you|above|before)`)},
	// Role manipulation.
	{"role_manipulation", regexp.MustCompile(`(?i)act\s+as\s+(a\s+|an\s+|the\s+)?(system|admin|administrator|root|developer)`)},
	{"role_manipulation", regexp.MustCompile(`(?i)you\s+are\s+now\s+(a\s+|an\s+|the\s+)?(system|admin|administrator|unrestricted)`)},
	{"role_manipulation", regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`)},
	// Structural role markers.
	{"role_marker", regexp.MustCompile(`(?i)</?\s*(system|assistant|user)\s*>`)},
	{"role_marker", regexp.MustCompile(`(?i)\[\s*(system|assistant|user)\s*\]\s*:`)},
	// Prompt exfiltration.
	{"exfiltration", regexp.MustCompile(`(?i)(repeat|reveal|show|print)\s+(your|the)\s+(instructions?|system\s+prompt|prompt)`)},
	{"exfiltration", regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(instructions?|system\s+prompt)`)},
	// Conversation reset.
	{"conversation_reset", regexp.MustCompile(`(?i)(new|fresh|start\s+a\s+new)\s+(conversation|session|chat)`)},
	{"conversation_reset", regexp.MustCompile(`(?i)#{1,3}\s*(end|reset)\s+of\s+(conversation|instructions)`)},
}

// roleMarkerRe matches structural role markers for stripping and density.
var roleMarkerRe = regexp.MustCompile(`(?i)(</?\s*(system|assistant|user)\s*>|\[\s*(system|assistant|user)\s*\]\s*:)`)

// leakedPromptRe spots fragments that look like an echoed system prompt.
var leakedPromptRe = regexp.MustCompile(`(?i)(you\s+are\s+a\s+helpful\s+assistant|my\s+system\s+prompt\s+is|the\s+above\s+instructions\s+say)`)

// Match is a single pattern hit on a snippet.
type Match struct {
	Family  string `json:"family"`
	Matched string `json:"matched"`
}

// DetectInjection scans one snippet against every pattern family.
func DetectInjection(snippet string) []Match {
	var matches []Match
	for _, p := range injectionPatterns {
		if m := p.re.FindString(snippet); m != "" {
			matches = append(matches, Match{Family: p.family, Matched: m})
		}
	}
	return matches
}

// ScanSnippets checks every retrieved/external snippet. Any match yields a
// warning-severity issue: the content stays usable but is flagged, and no
// match is ever dropped from the list.
func ScanSnippets(snippets []string) []Issue {
	var issues []Issue
	for _, s := range snippets {
		for _, m := range DetectInjection(s) {
			issues = append(issues, Issue{
				Code:     CodePromptInjection,
				Severity: SeverityWarning,
				Message:  "possible prompt injection (" + m.Family + "): " + m.Matched,
				Snippet:  truncate(s, 80),
			})
		}
	}
	return issues
}

// Sanitize strips role markers and injection phrasing from a snippet and
// truncates it to maxLen runes. Mandatory for any externally sourced text
// before it is interpolated into a model prompt, and it runs before
// packing, not after.
func Sanitize(snippet string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetMaxLen
	}
	out := roleMarkerRe.ReplaceAllString(snippet, " ")
	for _, p := range injectionPatterns {
		out = p.re.ReplaceAllString(out, " ")
	}
	out = strings.Join(strings.Fields(out), " ")
	runes := []rune(out)
	if len(runes) > maxLen {
		out = string(runes[:maxLen])
	}
	return out
}

// RiskScore combines pattern-match count, leaked-prompt detection and
// role-marker density into a bounded 0-1 score for soft-threshold policies.
func RiskScore(snippet string) float64 {
	if snippet == "" {
		return 0
	}

	matches := DetectInjection(snippet)
	score := float64(len(matches)) * 0.25

	if leakedPromptRe.MatchString(snippet) {
		score += 0.3
	}

	markers := roleMarkerRe.FindAllString(snippet, -1)
	words := len(strings.Fields(snippet))
	if words > 0 {
		density := float64(len(markers)) / float64(words)
		score += density * 2
	}

	if score > 1 {
		score = 1
	}
	return score
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
