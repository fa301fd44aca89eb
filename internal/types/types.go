// ABOUTME: Common types shared across the OpsDeck console.
// ABOUTME: Defines findings, tasks, and community posts rendered by the content views.

package types

import "strings"

// Severity is the risk level attached to a finding by the scan collaborator
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from most to least urgent
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// ParseSeverity normalizes a collaborator-provided severity string
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, true
	default:
		return "", false
	}
}

// Rank orders severities for sorting (critical highest)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Finding is one structured vulnerability report returned by the scan collaborator.
// Findings are replaced wholesale on every scan and never mutated in place.
type Finding struct {
	VulnerabilityName      string   `json:"vulnerability"`
	Severity               Severity `json:"severity"`
	Description            string   `json:"description"`
	RemediationExplanation string   `json:"remediation_explanation"`
	RemediationCode        string   `json:"remediation_code"`
	LineNumber             string   `json:"line_number,omitempty"`
	CodeSnippet            string   `json:"code_snippet,omitempty"`
	CWEID                  string   `json:"cwe_id,omitempty"`
	MitigationSteps        []string `json:"mitigation_steps"`
}

// DisplayLine returns the reported line reference or "Unknown"
func (f Finding) DisplayLine() string {
	return orUnknown(f.LineNumber)
}

// DisplayCWE returns the CWE identifier or "Unknown"
func (f Finding) DisplayCWE() string {
	return orUnknown(f.CWEID)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// Priority of a task on the ops board
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority from user input
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	default:
		return "", false
	}
}

// TaskStatus is the Kanban column a task sits in. Any status may move to any other.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusReview     TaskStatus = "REVIEW"
	StatusDone       TaskStatus = "DONE"
)

// Statuses lists the board columns in display order
func Statuses() []TaskStatus {
	return []TaskStatus{StatusBacklog, StatusInProgress, StatusReview, StatusDone}
}

// ParseTaskStatus validates a status from user input
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses() {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Task is a single card on the ops board
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
}

// Post is a community feed entry
type Post struct {
	ID       string `json:"id"`
	Author   string `json:"author"`
	Badge    string `json:"badge"` // CORE TEAM, MEMBER, ADMIN
	Content  string `json:"content"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
	Age      string `json:"age"`
	Flagged  bool   `json:"flagged"`
}
