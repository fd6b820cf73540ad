package expert

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
)

var _ ChatClient = (*OpenAIClient)(nil)

// OpenAIClient talks to the Chat Completions API. User prompts are clamped to
// the configured token budget before the call, so oversized expert context
// never produces a 400 from the API.
type OpenAIClient struct {
	cli          openai.Client
	model        string
	maxTokens    int
	promptBudget int
	enc          *tiktoken.Tiktoken
}

func NewOpenAIClient(apiKey, model string, maxTokens, promptBudget int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &OpenAIClient{
		cli:          openai.NewClient(option.WithAPIKey(apiKey)),
		model:        model,
		maxTokens:    maxTokens,
		promptBudget: promptBudget,
		enc:          enc,
	}, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(c.clamp(user)),
		},
		MaxTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("no choice content")
	}
	return resp.Choices[0].Message.Content, nil
}

// clamp truncates the prompt to the token budget.
func (c *OpenAIClient) clamp(text string) string {
	if c.promptBudget <= 0 {
		return text
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= c.promptBudget {
		return text
	}
	return c.enc.Decode(ids[:c.promptBudget])
}
