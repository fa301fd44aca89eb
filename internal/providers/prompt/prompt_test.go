// ABOUTME: Tests for shared prompt construction and response fence stripping.
// ABOUTME: Ensures every provider sends the same audit request.

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: " [] ", want: "[]"},
		{name: "json fence", in: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "bare fence", in: "```\n[]\n```\n", want: "[]"},
		{name: "fence without body", in: "```", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestPrompts(t *testing.T) {
	code := "os.system(cmd)"

	assert.True(t, strings.HasSuffix(Scan(code), code))
	assert.Contains(t, ScanWithSchema(code), `"mitigationSteps"`)
	assert.Contains(t, Improve("draft"), "cybersecurity article")
	assert.Len(t, FindingFields, 9)
}
