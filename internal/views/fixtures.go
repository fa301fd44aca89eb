// ABOUTME: Seed data for the dashboard, ops board, and community feed.
// ABOUTME: Every session starts from its own copy of these fixtures.

package views

import "github.com/jfeddern/OpsDeck/internal/types"

func seedTasks() []types.Task {
	return []types.Task{
		{ID: "1", Title: "Implement TLS 1.3", Description: "Upgrade all endpoints to support the latest TLS standard.", Priority: types.PriorityHigh, Status: types.StatusInProgress},
		{ID: "2", Title: "Database Encryption", Description: "Ensure all PII data is encrypted at rest using AES-256.", Priority: types.PriorityHigh, Status: types.StatusBacklog},
		{ID: "3", Title: "Audit API Tokens", Description: "Review and rotate expired or unused API keys.", Priority: types.PriorityMedium, Status: types.StatusDone},
		{ID: "4", Title: "XSS Vulnerability Patch", Description: "Fix the sanitization issue in the comments section.", Priority: types.PriorityHigh, Status: types.StatusReview},
	}
}

func seedPosts() []types.Post {
	return []types.Post{
		{
			ID:       "1",
			Author:   "CyberSentinel",
			Badge:    "CORE TEAM",
			Content:  "Just patched a major SQL injection vector in the authentication middleware. Everyone, please update your local environments.",
			Likes:    42,
			Comments: 12,
			Age:      "2h ago",
		},
		{
			ID:       "2",
			Author:   "HexHunter",
			Badge:    "MEMBER",
			Content:  "Anyone has resources for learning advanced heap spray techniques? Exploring binary exploitation lately.",
			Likes:    15,
			Comments: 24,
			Age:      "5h ago",
		},
		{
			ID:       "3",
			Author:   "ZeroDayRex",
			Badge:    "ADMIN",
			Content:  "Weekly security briefing starting in 1 hour. We will be discussing the latest CVEs in **Webkit**.",
			Likes:    89,
			Comments: 5,
			Age:      "8h ago",
		},
	}
}

func seedStats() []Stat {
	return []Stat{
		{Label: "Active Threats", Value: "24"},
		{Label: "Total Scans", Value: "1,284"},
		{Label: "System Health", Value: "98.2%"},
		{Label: "Global Nodes", Value: "142"},
	}
}

func seedHistory() []DayPoint {
	return []DayPoint{
		{Day: "Mon", Threats: 12, Blocked: 40},
		{Day: "Tue", Threats: 19, Blocked: 45},
		{Day: "Wed", Threats: 3, Blocked: 30},
		{Day: "Thu", Threats: 25, Blocked: 55},
		{Day: "Fri", Threats: 15, Blocked: 48},
		{Day: "Sat", Threats: 10, Blocked: 35},
		{Day: "Sun", Threats: 8, Blocked: 32},
	}
}
