// ABOUTME: Unit tests for finding schema validation at the collaborator boundary.
// ABOUTME: Covers severity normalization, optional-field defaults, and rejection rules.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFindings(t *testing.T) {
	body := `[
		{
			"vulnerability": "SQL Injection",
			"severity": "CRITICAL",
			"description": "User input concatenated into a query",
			"remediationExplanation": "Use parameterized queries",
			"remediationCode": "db.Query(\"SELECT * FROM users WHERE id = ?\", id)",
			"lineNumber": "12",
			"codeSnippet": "db.Query(\"SELECT * FROM users WHERE id = \" + id)",
			"cweId": "CWE-89",
			"mitigationSteps": ["Use placeholders", "  ", "Validate input"]
		},
		{
			"vulnerability": "Verbose errors",
			"severity": "low",
			"description": "Stack traces returned to clients",
			"remediationExplanation": "Log internally",
			"remediationCode": "return errGeneric"
		}
	]`

	findings, err := DecodeFindings([]byte(body))
	require.NoError(t, err)
	require.Len(t, findings, 2)

	first := findings[0]
	assert.Equal(t, SeverityCritical, first.Severity)
	assert.Equal(t, "CWE-89", first.DisplayCWE())
	assert.Equal(t, "12", first.DisplayLine())
	assert.Equal(t, []string{"Use placeholders", "Validate input"}, first.MitigationSteps)

	second := findings[1]
	assert.Equal(t, SeverityLow, second.Severity)
	assert.Equal(t, "Unknown", second.DisplayLine())
	assert.Equal(t, "Unknown", second.DisplayCWE())
	assert.Empty(t, second.MitigationSteps)
	assert.NotNil(t, second.MitigationSteps)
}

func TestDecodeFindings_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: "   "},
		{name: "not an array", body: `{"vulnerability":"x"}`},
		{name: "unknown severity", body: `[{"vulnerability":"x","severity":"severe"}]`},
		{name: "missing name", body: `[{"vulnerability":" ","severity":"low"}]`},
		{name: "truncated", body: `[{"vulnerability":"x",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := DecodeFindings([]byte(tt.body))
			assert.Nil(t, findings)
			assert.True(t, errors.Is(err, ErrSchema), "expected ErrSchema, got %v", err)
		})
	}
}

func TestDecodeFindings_EmptyArrayIsClean(t *testing.T) {
	findings, err := DecodeFindings([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestEncodeFindingsRoundTripKeepsOptionalFieldsAbsent(t *testing.T) {
	data, err := EncodeFindings([]Finding{{
		VulnerabilityName: "Open redirect",
		Severity:          SeverityMedium,
	}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "lineNumber")

	decoded, err := DecodeFindings(data)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "Unknown", decoded[0].DisplayLine())
}

func TestParseHelpers(t *testing.T) {
	sev, ok := ParseSeverity(" High ")
	assert.True(t, ok)
	assert.Equal(t, SeverityHigh, sev)
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())

	_, ok = ParsePriority("urgent")
	assert.False(t, ok)

	status, ok := ParseTaskStatus("in_progress")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, status)

	_, ok = ParseTaskStatus("ARCHIVED")
	assert.False(t, ok)
}
