package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCitations_MissingTarget(t *testing.T) {
	sources := []Source{
		{Marker: "R1", Name: "handbook.pdf"},
		{Marker: "R2", Name: "contract.docx"},
	}
	answer := "The notice period is 30 days [R3].\n\nSources:\n[R1] handbook.pdf\n"

	issues := ValidateCitations(answer, sources, true)

	var missing *Issue
	for i := range issues {
		if issues[i].Code == CodeMissingCitationTarget {
			missing = &issues[i]
		}
	}
	require.NotNil(t, missing)
	assert.Equal(t, SeverityError, missing.Severity)
	assert.Contains(t, missing.Message, "[R3]")
}

func TestValidateCitations_UnusedSourceIsWarning(t *testing.T) {
	sources := []Source{
		{Marker: "R1", Name: "handbook.pdf"},
		{Marker: "W1", Name: "example.com"},
	}
	answer := "Per the handbook [R1], remote work is allowed.\n\nSources:\n[R1] handbook.pdf\n"

	issues := ValidateCitations(answer, sources, true)

	require.Len(t, issues, 1)
	assert.Equal(t, CodeUnusedSource, issues[0].Code)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "W1")
}

func TestValidateCitations_MissingSourcesSection(t *testing.T) {
	sources := []Source{{Marker: "R1", Name: "handbook.pdf"}}
	answer := "Remote work is allowed [R1]."

	issues := ValidateCitations(answer, sources, true)

	found := false
	for _, is := range issues {
		if is.Code == CodeMissingSourcesSection {
			found = true
			assert.Equal(t, SeverityError, is.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateCitations_NoRetrievalNoSectionRequired(t *testing.T) {
	issues := ValidateCitations("A general answer with no citations.", nil, false)
	assert.Empty(t, issues)
}

func TestHasSection_Fuzzy(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"body\n\nSources:\n[R1] a.pdf", true},
		{"body\n\n## sources\n[R1] a.pdf", true},
		{"body\n\nSOURCE:\n[R1] a.pdf", true}, // abbreviation-tolerant
		{"body\n\nSrc:\n[R1] a.pdf", false},   // too short to abbreviate
		{"body without any heading", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HasSection(c.text, "Sources"), c.text)
	}
}

func TestCheckSections(t *testing.T) {
	answer := "Summary:\nAll good.\n\nRecommendations:\nDo the thing.\n"

	assert.Empty(t, CheckSections(answer, []string{"Summary", "Recommendations"}))

	issues := CheckSections(answer, []string{"Summary", "Risk Assessment"})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeMissingSection, issues[0].Code)
	assert.Contains(t, issues[0].Message, "Risk Assessment")
}
