// ABOUTME: Boundary decoding for scan collaborator responses.
// ABOUTME: Validates the fixed finding schema before anything reaches the views.

package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is returned when a collaborator response does not match the finding schema
var ErrSchema = errors.New("response does not match finding schema")

// wireFinding mirrors the JSON shape requested from the model
type wireFinding struct {
	Vulnerability          string   `json:"vulnerability"`
	Severity               string   `json:"severity"`
	Description            string   `json:"description"`
	RemediationExplanation string   `json:"remediationExplanation"`
	RemediationCode        string   `json:"remediationCode"`
	LineNumber             *string  `json:"lineNumber,omitempty"`
	CodeSnippet            *string  `json:"codeSnippet,omitempty"`
	CWEID                  *string  `json:"cweId,omitempty"`
	MitigationSteps        []string `json:"mitigationSteps"`
}

// DecodeFindings parses a JSON array of findings. Any entry violating the schema
// rejects the whole response; partial results are never returned.
func DecodeFindings(data []byte) ([]Finding, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrSchema)
	}

	var wire []wireFinding
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	findings := make([]Finding, 0, len(wire))
	for i, w := range wire {
		severity, ok := ParseSeverity(w.Severity)
		if !ok {
			return nil, fmt.Errorf("%w: finding %d has severity %q", ErrSchema, i, w.Severity)
		}
		if strings.TrimSpace(w.Vulnerability) == "" {
			return nil, fmt.Errorf("%w: finding %d has no vulnerability name", ErrSchema, i)
		}

		steps := make([]string, 0, len(w.MitigationSteps))
		for _, step := range w.MitigationSteps {
			if step = strings.TrimSpace(step); step != "" {
				steps = append(steps, step)
			}
		}

		findings = append(findings, Finding{
			VulnerabilityName:      strings.TrimSpace(w.Vulnerability),
			Severity:               severity,
			Description:            w.Description,
			RemediationExplanation: w.RemediationExplanation,
			RemediationCode:        w.RemediationCode,
			LineNumber:             deref(w.LineNumber),
			CodeSnippet:            deref(w.CodeSnippet),
			CWEID:                  deref(w.CWEID),
			MitigationSteps:        steps,
		})
	}

	return findings, nil
}

// EncodeFindings produces the wire JSON accepted by DecodeFindings
func EncodeFindings(findings []Finding) ([]byte, error) {
	wire := make([]wireFinding, 0, len(findings))
	for _, f := range findings {
		wire = append(wire, wireFinding{
			Vulnerability:          f.VulnerabilityName,
			Severity:               string(f.Severity),
			Description:            f.Description,
			RemediationExplanation: f.RemediationExplanation,
			RemediationCode:        f.RemediationCode,
			LineNumber:             ref(f.LineNumber),
			CodeSnippet:            ref(f.CodeSnippet),
			CWEID:                  ref(f.CWEID),
			MitigationSteps:        f.MitigationSteps,
		})
	}
	return json.Marshal(wire)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
