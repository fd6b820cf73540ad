package expert

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

var _ ChatClient = (*GeminiClient)(nil)

type GeminiClient struct {
	client *genai.Client
	model  string
	maxOut int
}

func NewGeminiClient(ctx context.Context, apiKey, model string, maxOut int) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiClient) Chat(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: user}}},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(g.maxOut),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}
