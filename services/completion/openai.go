package completionsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/analysis"
)

const defaultModel = "gpt-4o"

type openAICompleter struct {
	client *openai.Client
	apiKey string
	model  string
}

var _ analysis.Completer = (*openAICompleter)(nil) // interface compliance check

func NewOpenAICompleter(conf *core.Config) *openAICompleter {
	cfg := openai.DefaultConfig(conf.Completion.APIKey)
	if conf.Completion.BaseURL != "" {
		cfg.BaseURL = conf.Completion.BaseURL
	}
	timeout := conf.Completion.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	model := conf.Completion.Model
	if model == "" {
		model = defaultModel
	}
	return &openAICompleter{
		client: openai.NewClientWithConfig(cfg),
		apiKey: conf.Completion.APIKey,
		model:  model,
	}
}

func (c openAICompleter) Configured() bool {
	return c.apiKey != ""
}

func (c openAICompleter) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	res, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "requesting completion")
	}
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}
