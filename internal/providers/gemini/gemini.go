// ABOUTME: Google Gemini collaborator implementing the scan and writing-assistant contracts.
// ABOUTME: Requests JSON output constrained by a response schema for scans.

package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/jfeddern/OpsDeck/internal/providers/prompt"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// generator is the subset of genai.Models the client calls
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements Scanner and Assistant against the Gemini API
type Client struct {
	models      generator
	scanModel   string
	assistModel string
	logger      *logrus.Logger
}

// NewClient creates a Gemini client authenticated with an API key
func NewClient(ctx context.Context, apiKey, scanModel, assistModel string, logger *logrus.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"scan_model":   scanModel,
		"assist_model": assistModel,
	}).Info("Initialized Gemini collaborator")

	return &Client{
		models:      client.Models,
		scanModel:   scanModel,
		assistModel: assistModel,
		logger:      logger,
	}, nil
}

// Name returns the collaborator name
func (c *Client) Name() string {
	return "gemini"
}

// Scan submits code for audit and decodes the returned findings
func (c *Client) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	logger := c.logger.WithFields(logrus.Fields{
		"operation": "scan",
		"model":     c.scanModel,
	})

	resp, err := c.models.GenerateContent(ctx, c.scanModel, genai.Text(prompt.Scan(code)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   findingSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini scan request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, prompt.ErrEmptyResponse
	}

	findings, err := types.DecodeFindings([]byte(prompt.StripFences(text)))
	if err != nil {
		return nil, err
	}

	logger.WithField("findings", len(findings)).Debug("Gemini scan completed")
	return findings, nil
}

// Improve asks the assistant model to polish text
func (c *Client) Improve(ctx context.Context, text string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.assistModel, genai.Text(prompt.Improve(text)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.EditorInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("gemini improve request failed: %w", err)
	}

	improved := strings.TrimSpace(resp.Text())
	if improved == "" {
		return "", prompt.ErrEmptyResponse
	}
	return improved, nil
}

// findingSchema mirrors the finding JSON shape for constrained decoding
func findingSchema() *genai.Schema {
	properties := make(map[string]*genai.Schema, len(prompt.FindingFields))
	for _, field := range prompt.FindingFields {
		properties[field] = &genai.Schema{Type: genai.TypeString}
	}
	properties["severity"] = &genai.Schema{
		Type: genai.TypeString,
		Enum: prompt.SeverityValues,
	}
	properties["mitigationSteps"] = &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   prompt.FindingFields,
		},
	}
}
