// ABOUTME: Factory for creating scan and writing-assistant collaborators.
// ABOUTME: Centralizes provider instantiation and configuration logic.

package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/jfeddern/OpsDeck/internal/providers/aws"
	"github.com/jfeddern/OpsDeck/internal/providers/gemini"
	"github.com/jfeddern/OpsDeck/internal/providers/mock"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderMock    = "mock"
)

// mockLatency keeps the asynchronous UI states visible when running without a model
const mockLatency = 1200 * time.Millisecond

// ProviderConfig holds configuration for creating collaborators
type ProviderConfig struct {
	Provider      string
	MockMode      bool // Force mock collaborators regardless of Provider
	GeminiAPIKey  string
	ScanModel     string
	AssistModel   string
	BedrockRegion string
	BedrockModel  string
	AssumeRoleARN string
}

func (c *ProviderConfig) effectiveProvider() string {
	if c.MockMode {
		return ProviderMock
	}
	return c.Provider
}

// collaborator is a model client serving both contracts
type collaborator interface {
	Scanner
	Assistant
}

// Model client constructors, replaceable in tests
var (
	newGeminiClient = func(ctx context.Context, c *ProviderConfig, logger *logrus.Logger) (collaborator, error) {
		return gemini.NewClient(ctx, c.GeminiAPIKey, c.ScanModel, c.AssistModel, logger)
	}
	newBedrockClient = func(ctx context.Context, c *ProviderConfig, logger *logrus.Logger) (collaborator, error) {
		return aws.NewBedrockClient(ctx, c.BedrockRegion, c.BedrockModel, c.AssumeRoleARN, logger)
	}
)

// CreateCollaborators creates the scan and writing-assistant collaborators
// based on configuration. Model-backed providers build one client that
// serves both.
func CreateCollaborators(ctx context.Context, config *ProviderConfig, logger *logrus.Logger) (Scanner, Assistant, error) {
	var (
		client collaborator
		err    error
	)

	switch config.effectiveProvider() {
	case ProviderMock:
		logger.Info("Using mock collaborators")
		scanner := mock.NewMockScanner(logger)
		scanner.Delay = mockLatency
		assistant := mock.NewMockAssistant(logger)
		assistant.Delay = mockLatency
		return scanner, assistant, nil
	case ProviderGemini:
		client, err = newGeminiClient(ctx, config, logger)
	case ProviderBedrock:
		client, err = newBedrockClient(ctx, config, logger)
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}
