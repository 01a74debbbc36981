package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/prompt"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/retry"
)

const (
	DefaultModel     = "gpt-4o-2024-08-06"
	DefaultMaxTokens = 4096
)

// Options configure the client. APIKey is read once at startup by the caller.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Retry          *retry.Runner
	Log            logrus.FieldLogger
}

// Client is the retrying reasoning service transport.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	retry     *retry.Runner
	log       logrus.FieldLogger
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	cfg.HTTPClient = httpClient

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := opts.Retry
	if r == nil {
		r = retry.New(log)
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
		retry:     r,
		log:       log,
	}
}

// Complete sends req under the retry policy and returns the reply payload text.
func (c *Client) Complete(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	chat := c.chatRequest(req)
	return retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (string, error) {
		c.log.WithFields(logrus.Fields{"attempt": attempt, "model": c.model}).Debug("calling reasoning service")
		resp, err := c.api.CreateChatCompletion(ctx, chat)
		if err != nil {
			return "", classify(err)
		}
		return extractPayload(resp)
	})
}

func (c *Client) chatRequest(req domain.AnalysisRequest) openai.ChatCompletionRequest {
	chat := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.Schema != nil {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   prompt.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	} else {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.model) {
		chat.MaxCompletionTokens = c.maxTokens
	} else {
		chat.MaxTokens = c.maxTokens
	}
	return chat
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// classify maps a go-openai error onto the retry vocabulary.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &retry.StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	// A body cut off mid-stream is a dropped connection and is retried.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("truncated response body: %w", err)
	}
	// A complete 2xx body that does not decode is a reply problem, not a transport one.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return retry.Permanent(domain.Malformed("undecodable response body", err))
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}

// extractPayload reads choices[0].message.content.
func extractPayload(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", retry.Permanent(domain.Malformed("reply has no choices", nil))
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", retry.Permanent(domain.Malformed("service refused: "+msg.Refusal, nil))
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", retry.Permanent(domain.Malformed("reply payload is empty", nil))
	}
	return msg.Content, nil
}
