package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	"github.com/snowdenHM/bill/internal/config"
	"github.com/snowdenHM/bill/internal/observability/metrics"
	"go.uber.org/zap"
)

// invoiceSchema is sent verbatim in the prompt so the model returns a
// predictable document. Some models echo it back wrapped; the normalizer
// handles both shapes.
const invoiceSchema = `{"$schema":"http://json-schema.org/draft/2020-12/schema","title":"Invoice","description":"A simple invoice format","type":"object","properties":{"invoiceNumber":{"type":"string"},"dateIssued":{"type":"string","format":"date"},"dueDate":{"type":"string","format":"date"},"from":{"type":"object","properties":{"name":{"type":"string"},"address":{"type":"string"}}},"to":{"type":"object","properties":{"name":{"type":"string"},"address":{"type":"string"}}},"items":{"type":"array","items":{"type":"object","properties":{"description":{"type":"string"},"quantity":{"type":"number"},"price":{"type":"number"}}}},"total":{"type":"number"},"igst":{"type":"number"},"cgst":{"type":"number"},"sgst":{"type":"number"}}}`

// ChatClient is the slice of the OpenAI client the extractor needs,
// injected so tests can swap in a canned implementation.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI extracts invoice fields from a JPEG via a vision chat completion.
type OpenAI struct {
	client    ChatClient
	model     string
	maxTokens int
	log       *zap.Logger
}

func NewOpenAI(client ChatClient, cfg config.Config, log *zap.Logger) *OpenAI {
	return &OpenAI{
		client:    client,
		model:     cfg.OpenAIModel,
		maxTokens: cfg.OpenAIMaxTokens,
		log:       log.Named("analysis.extractor"),
	}
}

// NewClient builds the real OpenAI client from configuration.
func NewClient(cfg config.Config) ChatClient {
	return openai.NewClient(cfg.OpenAIAPIKey)
}

func (x *OpenAI) Extract(ctx context.Context, imageJPEG []byte) ([]byte, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)

	started := time.Now()
	resp, err := x.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     x.model,
		MaxTokens: x.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Extract invoice data in JSON format using this schema: " + invoiceSchema,
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		metrics.Pipeline().ObserveAICall(time.Since(started).Seconds(), "error")
		return nil, fmt.Errorf("%w: %v", analysisdomain.ErrExtractionFailed, err)
	}
	metrics.Pipeline().ObserveAICall(time.Since(started).Seconds(), "success")

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", analysisdomain.ErrExtractionFailed)
	}

	content := resp.Choices[0].Message.Content
	x.log.Debug("extraction response",
		zap.String("model", x.model),
		zap.Int("content_length", len(content)),
	)
	return []byte(content), nil
}
