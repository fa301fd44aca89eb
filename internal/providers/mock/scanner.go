// ABOUTME: Mock scan collaborator for local testing and development.
// ABOUTME: Returns canned findings keyed on simple markers without calling any model.

package mock

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
)

// FailMarker makes the mock scanner fail, to exercise the failure path end to end
const FailMarker = "opsdeck:fail"

// ErrSimulatedFailure is returned when the code contains FailMarker
var ErrSimulatedFailure = errors.New("simulated model failure")

// profile is a canned finding triggered when any marker appears in a line
type profile struct {
	markers []string
	finding types.Finding
}

var profiles = []profile{
	{
		markers: []string{"select * from", "select id", "where id = \" +", "' + "},
		finding: types.Finding{
			VulnerabilityName:      "SQL Injection",
			Severity:               types.SeverityCritical,
			Description:            "User-controlled input is concatenated into a SQL statement, allowing an attacker to read or modify arbitrary rows.",
			RemediationExplanation: "Bind user input as query parameters so the driver never interprets it as SQL.",
			RemediationCode:        "rows, err := db.QueryContext(ctx, \"SELECT * FROM users WHERE id = ?\", id)",
			CWEID:                  "CWE-89",
			MitigationSteps: []string{
				"Replace string concatenation with parameterized queries",
				"Validate identifiers against an allow-list",
				"Run the database user with least privilege",
			},
		},
	},
	{
		markers: []string{"innerhtml", "document.write", "dangerouslysetinnerhtml"},
		finding: types.Finding{
			VulnerabilityName:      "Cross-Site Scripting",
			Severity:               types.SeverityHigh,
			Description:            "Untrusted data is written into the DOM as HTML, allowing script injection in the victim's browser.",
			RemediationExplanation: "Assign untrusted values as text, or sanitize them with a vetted HTML sanitizer.",
			RemediationCode:        "element.textContent = userInput;",
			CWEID:                  "CWE-79",
			MitigationSteps: []string{
				"Use textContent instead of innerHTML",
				"Apply a strict Content-Security-Policy",
			},
		},
	},
	{
		markers: []string{"eval(", "os.system(", "exec(", "child_process"},
		finding: types.Finding{
			VulnerabilityName:      "Command Injection",
			Severity:               types.SeverityCritical,
			Description:            "Input reaches a code or shell evaluation sink, enabling arbitrary command execution.",
			RemediationExplanation: "Invoke programs directly with an argument list and never evaluate user input as code.",
			RemediationCode:        "subprocess.run([\"ls\", \"-l\", path], check=True)",
			CWEID:                  "CWE-78",
			MitigationSteps: []string{
				"Remove eval and shell invocation of user input",
				"Pass arguments as a list without a shell",
				"Validate input against an allow-list",
			},
		},
	},
	{
		markers: []string{"password =", "password=", "api_key =", "apikey =", "secret ="},
		finding: types.Finding{
			VulnerabilityName:      "Hard-coded Credentials",
			Severity:               types.SeverityHigh,
			Description:            "A credential is embedded in source code and will leak through version control and build artifacts.",
			RemediationExplanation: "Load secrets from the environment or a secret manager at runtime.",
			RemediationCode:        "password := os.Getenv(\"DB_PASSWORD\")",
			CWEID:                  "CWE-798",
			MitigationSteps: []string{
				"Rotate the exposed credential",
				"Move the secret to a secret manager",
			},
		},
	},
	{
		markers: []string{"md5", "sha1"},
		finding: types.Finding{
			VulnerabilityName:      "Weak Hash Algorithm",
			Severity:               types.SeverityMedium,
			Description:            "A broken hash function is used where collision or preimage resistance matters.",
			RemediationExplanation: "Use SHA-256 or better for integrity, and a password hash such as bcrypt or argon2 for credentials.",
			RemediationCode:        "sum := sha256.Sum256(data)",
			CWEID:                  "CWE-328",
			MitigationSteps: []string{
				"Replace MD5/SHA-1 with SHA-256",
				"Use a dedicated password hashing function for credentials",
			},
		},
	},
	{
		markers: []string{"http://"},
		finding: types.Finding{
			VulnerabilityName:      "Cleartext Transmission",
			Severity:               types.SeverityLow,
			Description:            "A plain HTTP endpoint is referenced, exposing traffic to interception.",
			RemediationExplanation: "Use HTTPS endpoints and enforce TLS.",
			RemediationCode:        "const endpoint = \"https://api.example.com\"",
			CWEID:                  "CWE-319",
			MitigationSteps: []string{
				"Switch the endpoint to HTTPS",
			},
		},
	},
}

// MockScanner implements Scanner with canned findings
type MockScanner struct {
	logger *logrus.Logger
	// Delay simulates model latency; it honors context cancellation
	Delay time.Duration
}

// NewMockScanner creates a new mock scan collaborator
func NewMockScanner(logger *logrus.Logger) *MockScanner {
	return &MockScanner{
		logger: logger,
	}
}

// Name returns the name of this collaborator
func (m *MockScanner) Name() string {
	return "mock"
}

// Scan returns one finding per matched profile, located at the first matching line
func (m *MockScanner) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return nil, err
	}

	if strings.Contains(code, FailMarker) {
		return nil, ErrSimulatedFailure
	}

	lines := strings.Split(code, "\n")
	findings := []types.Finding{}

	for _, p := range profiles {
		lineNo, line, ok := firstMatch(lines, p.markers)
		if !ok {
			continue
		}

		f := p.finding
		f.LineNumber = strconv.Itoa(lineNo)
		f.CodeSnippet = strings.TrimSpace(line)
		f.MitigationSteps = append([]string(nil), p.finding.MitigationSteps...)
		findings = append(findings, f)
	}

	m.logger.WithFields(logrus.Fields{
		"lines":    len(lines),
		"findings": len(findings),
	}).Debug("Mock scan completed")

	return findings, nil
}

func firstMatch(lines []string, markers []string) (int, string, bool) {
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				return i + 1, line, true
			}
		}
	}
	return 0, "", false
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
