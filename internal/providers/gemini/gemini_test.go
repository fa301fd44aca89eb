// ABOUTME: Unit tests for the Gemini collaborator using a fake content generator.
// ABOUTME: Covers schema construction, response decoding, and failure propagation.

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/jfeddern/OpsDeck/internal/providers/prompt"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}},
		},
	}, nil
}

func newTestClient(gen generator) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return &Client{
		models:      gen,
		scanModel:   "scan-model",
		assistModel: "assist-model",
		logger:      logger,
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "a", "b", logrus.New())
	assert.Error(t, err)
}

func TestClient_Scan(t *testing.T) {
	gen := &fakeGenerator{text: `[{"vulnerability":"XSS","severity":"high","description":"d","remediationExplanation":"e","remediationCode":"c","lineNumber":"4","codeSnippet":"el.innerHTML = v","cweId":"CWE-79","mitigationSteps":["Escape output"]}]`}
	client := newTestClient(gen)

	findings, err := client.Scan(context.Background(), "el.innerHTML = v")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "scan-model", gen.model)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
}

func TestClient_ScanFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{name: "transport error", gen: &fakeGenerator{err: errors.New("quota exceeded")}},
		{name: "empty text", gen: &fakeGenerator{text: "  "}, want: prompt.ErrEmptyResponse},
		{name: "schema violation", gen: &fakeGenerator{text: `[{"vulnerability":"x","severity":"urgent"}]`}, want: types.ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := newTestClient(tt.gen).Scan(context.Background(), "code")
			require.Error(t, err)
			assert.Nil(t, findings)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestClient_Improve(t *testing.T) {
	gen := &fakeGenerator{text: "  Polished text.  "}
	client := newTestClient(gen)

	out, err := client.Improve(context.Background(), "polish me")
	require.NoError(t, err)
	assert.Equal(t, "Polished text.", out)
	assert.Equal(t, "assist-model", gen.model)
	require.NotNil(t, gen.config.SystemInstruction)

	gen.text = ""
	_, err = client.Improve(context.Background(), "polish me")
	assert.ErrorIs(t, err, prompt.ErrEmptyResponse)
}

func TestFindingSchema(t *testing.T) {
	schema := findingSchema()
	assert.Equal(t, genai.TypeArray, schema.Type)
	require.NotNil(t, schema.Items)
	assert.ElementsMatch(t, prompt.FindingFields, schema.Items.Required)
	assert.Equal(t, prompt.SeverityValues, schema.Items.Properties["severity"].Enum)
	assert.Equal(t, genai.TypeArray, schema.Items.Properties["mitigationSteps"].Type)
}
