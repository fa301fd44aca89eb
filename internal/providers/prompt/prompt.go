// ABOUTME: Prompt text and response helpers shared by every model-backed collaborator.
// ABOUTME: Keeps the scan request and finding schema identical across providers.

package prompt

import (
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no usable text
var ErrEmptyResponse = errors.New("model returned an empty response")

const EditorInstruction = "You are a professional technical editor for a cybersecurity magazine. " +
	"Focus on clarity, precision, and tone. Return only the revised article text."

const scanHeader = `Perform a high-fidelity security audit on the following source code.
For every vulnerability detected:
1. Provide a concise vulnerability name.
2. Identify the exact line number(s).
3. Capture the exact vulnerable code snippet.
4. Map it to a CWE ID (e.g., CWE-79, CWE-89).
5. Detail the risk and potential exploit impact.
6. Provide a set of clear, actionable mitigation steps.
7. Provide a detailed explanation of the fix.
8. Provide a production-ready, secure code fix.

Return the results as a JSON array.`

// FindingFields are the JSON keys every finding object must carry
var FindingFields = []string{
	"vulnerability",
	"severity",
	"description",
	"remediationExplanation",
	"remediationCode",
	"lineNumber",
	"codeSnippet",
	"cweId",
	"mitigationSteps",
}

// SeverityValues is the severity enumeration accepted in responses
var SeverityValues = []string{"low", "medium", "high", "critical"}

// schemaText describes the response shape for models without native schema support
const schemaText = `Each array element must be an object with these keys:
  "vulnerability" (string), "severity" (one of "low", "medium", "high", "critical"),
  "description" (string), "remediationExplanation" (string), "remediationCode" (string),
  "lineNumber" (string), "codeSnippet" (string), "cweId" (string),
  "mitigationSteps" (array of strings).
Respond with the JSON array only. Respond with [] if nothing is found.`

// Scan builds the audit request for code
func Scan(code string) string {
	return scanHeader + " Source Code:\n\n" + code
}

// ScanWithSchema builds the audit request with the schema spelled out inline
func ScanWithSchema(code string) string {
	return scanHeader + "\n" + schemaText + "\n\nSource Code:\n\n" + code
}

// Improve builds the writing assistant request
func Improve(text string) string {
	return "Improve the grammar and professional tone of this cybersecurity article:\n\n" + text
}

// StripFences removes a surrounding markdown code fence, if any
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
