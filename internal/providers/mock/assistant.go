// ABOUTME: Mock writing assistant for local testing and development.
// ABOUTME: Tidies whitespace and sentence casing instead of calling a model.

package mock

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/jfeddern/OpsDeck/internal/providers/prompt"
	"github.com/sirupsen/logrus"
)

// MockAssistant implements Assistant with deterministic text cleanup
type MockAssistant struct {
	logger *logrus.Logger
	Delay  time.Duration
}

// NewMockAssistant creates a new mock writing assistant
func NewMockAssistant(logger *logrus.Logger) *MockAssistant {
	return &MockAssistant{
		logger: logger,
	}
}

// Name returns the name of this collaborator
func (m *MockAssistant) Name() string {
	return "mock"
}

// Improve collapses runs of spaces, capitalizes sentences, and terminates paragraphs
func (m *MockAssistant) Improve(ctx context.Context, text string) (string, error) {
	if err := wait(ctx, m.Delay); err != nil {
		return "", err
	}

	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		para = capitalizeSentences(para)
		if last := para[len(para)-1]; last != '.' && last != '!' && last != '?' {
			para += "."
		}
		paragraphs = append(paragraphs, para)
	}

	if len(paragraphs) == 0 {
		return "", prompt.ErrEmptyResponse
	}

	m.logger.WithField("paragraphs", len(paragraphs)).Debug("Mock improve completed")
	return strings.Join(paragraphs, "\n\n"), nil
}

func capitalizeSentences(s string) string {
	runes := []rune(s)
	upper := true
	for i, r := range runes {
		switch {
		case upper && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			upper = false
		case r == '.' || r == '!' || r == '?':
			upper = true
		case !unicode.IsSpace(r):
			upper = false
		}
	}
	return string(runes)
}
