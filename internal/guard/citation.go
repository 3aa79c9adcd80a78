package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// Source is one entry in the combined retrieval-source list an answer may
// cite. Marker is the in-text token, e.g. "R1" for retrieved documents or
// "W2" for web results.
type Source struct {
	Marker string `json:"marker"`
	Name   string `json:"name"`
}

// markerRe matches citation markers: a single letter class plus digits,
// bracketed in the generated text.
var markerRe = regexp.MustCompile(`\[([A-Z])(\d+)\]`)

// sectionHeadingRe matches markdown-style or plain "Heading:" lines.
var sectionHeadingRe = regexp.MustCompile(`(?m)^\s*(?:#{1,4}\s*)?([A-Za-z][A-Za-z0-9 /&-]{0,60})\s*:?\s*$`)

// ValidateCitations checks citation integrity of a generated answer
// against the combined source list. Every marker in the text must map to
// a source (missing targets are errors); sources never cited are flagged
// as warnings, not hard failures. When retrieval or web search was used,
// a missing Sources section is an error.
func ValidateCitations(answer string, sources []Source, retrievalUsed bool) []Issue {
	var issues []Issue

	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s.Marker] = false
	}

	for _, m := range markerRe.FindAllStringSubmatch(answer, -1) {
		marker := m[1] + m[2]
		if _, ok := known[marker]; !ok {
			issues = append(issues, Issue{
				Code:     CodeMissingCitationTarget,
				Severity: SeverityError,
				Message:  fmt.Sprintf("citation marker [%s] has no matching source", marker),
			})
			continue
		}
		known[marker] = true
	}

	for _, s := range sources {
		if !known[s.Marker] {
			issues = append(issues, Issue{
				Code:     CodeUnusedSource,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("source [%s] (%s) is never cited", s.Marker, s.Name),
			})
		}
	}

	if retrievalUsed && !HasSection(answer, "Sources") {
		issues = append(issues, Issue{
			Code:     CodeMissingSourcesSection,
			Severity: SeverityError,
			Message:  "answer used retrieval but has no Sources section",
		})
	}

	return issues
}

// CheckSections verifies each required output section is present, using
// fuzzy matching to tolerate minor model phrasing drift.
func CheckSections(answer string, required []string) []Issue {
	var issues []Issue
	for _, name := range required {
		if !HasSection(answer, name) {
			issues = append(issues, Issue{
				Code:     CodeMissingSection,
				Severity: SeverityError,
				Message:  fmt.Sprintf("required section %q is missing", name),
			})
		}
	}
	return issues
}

// HasSection reports whether a heading fuzzily matching name appears in
// the text. Matching is case-insensitive and abbreviation-tolerant: the
// normalized heading may be a prefix of the wanted name or vice versa.
func HasSection(text, name string) bool {
	want := normalizeSection(name)
	if want == "" {
		return false
	}
	for _, m := range sectionHeadingRe.FindAllStringSubmatch(text, -1) {
		got := normalizeSection(m[1])
		if got == "" {
			continue
		}
		if got == want || sectionAbbreviates(got, want) || sectionAbbreviates(want, got) {
			return true
		}
	}
	return false
}

// sectionAbbreviates reports whether short is a usable abbreviation of
// long: a prefix of at least three characters.
func sectionAbbreviates(short, long string) bool {
	if len(short) < 3 || len(short) >= len(long) {
		return false
	}
	return strings.HasPrefix(long, short)
}

func normalizeSection(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
