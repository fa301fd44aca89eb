// ABOUTME: Amazon Bedrock collaborator implementing the scan and writing-assistant contracts.
// ABOUTME: Handles authentication (including role assumption) and calls the Converse API.

package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/jfeddern/OpsDeck/internal/providers/prompt"
	"github.com/jfeddern/OpsDeck/internal/types"
	"github.com/sirupsen/logrus"
)

const scanInstruction = "You are an application security auditor. You answer only with JSON."

// converser is the subset of the Bedrock runtime client used here
type converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Scanner and Assistant for Amazon Bedrock
type BedrockClient struct {
	client  converser
	modelID string
	region  string
	logger  *logrus.Logger
}

// NewBedrockClient creates a Bedrock collaborator. When assumeRoleARN is set the
// client assumes that role through STS before calling the model.
func NewBedrockClient(ctx context.Context, region, modelID, assumeRoleARN string, logger *logrus.Logger) (*BedrockClient, error) {
	if modelID == "" {
		return nil, fmt.Errorf("bedrock model ID is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if assumeRoleARN != "" {
		logger.WithField("role_arn", assumeRoleARN).Info("Assuming role for Bedrock access")

		stsClient := sts.NewFromConfig(cfg.Copy())
		cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, assumeRoleARN))
	} else {
		// Log the identity we run as; failure here is not fatal
		stsClient := sts.NewFromConfig(cfg.Copy())
		identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			logger.WithError(err).Warn("Could not get caller identity, proceeding with default credentials")
		} else {
			logger.WithField("account", aws.ToString(identity.Account)).Info("AWS identity information")
		}
	}

	logger.WithFields(logrus.Fields{
		"region":   region,
		"model_id": modelID,
	}).Info("Initialized Bedrock collaborator")

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		region:  region,
		logger:  logger,
	}, nil
}

// Name returns the collaborator name
func (b *BedrockClient) Name() string {
	return "aws-bedrock"
}

// Scan submits code for audit and decodes the returned findings
func (b *BedrockClient) Scan(ctx context.Context, code string) ([]types.Finding, error) {
	text, err := b.converse(ctx, scanInstruction, prompt.ScanWithSchema(code), 8192)
	if err != nil {
		return nil, fmt.Errorf("bedrock scan request failed: %w", err)
	}

	findings, err := types.DecodeFindings([]byte(prompt.StripFences(text)))
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"operation": "scan",
		"findings":  len(findings),
	}).Debug("Bedrock scan completed")
	return findings, nil
}

// Improve asks the model to polish text
func (b *BedrockClient) Improve(ctx context.Context, text string) (string, error) {
	improved, err := b.converse(ctx, prompt.EditorInstruction, prompt.Improve(text), 4096)
	if err != nil {
		return "", fmt.Errorf("bedrock improve request failed: %w", err)
	}
	return improved, nil
}

func (b *BedrockClient) converse(ctx context.Context, system, user string, maxTokens int32) (string, error) {
	output, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: system},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: user},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return "", err
	}

	return outputText(output)
}

// outputText concatenates the text blocks of a Converse response
func outputText(output *bedrockruntime.ConverseOutput) (string, error) {
	if output == nil {
		return "", prompt.ErrEmptyResponse
	}

	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", prompt.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", prompt.ErrEmptyResponse
	}
	return out, nil
}
