package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the OpenAI SDK for phrasing reminder notifications.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// maxBodyLen caps the notification body a model reply can produce.
const maxBodyLen = 140

// New returns a client bound to apiKey. An empty key yields a client whose calls
// return ErrClientNotInitialised.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: &client,
		model:  openai.ChatModelGPT4oMini,
	}
}

// Enabled reports whether the client can reach the API.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// ComposeReminder asks the model for a short, friendly notification body for a to-do title.
func (c *Client) ComposeReminder(ctx context.Context, title string, due time.Time) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("title cannot be empty")
	}
	if !c.Enabled() {
		return "", ErrClientNotInitialised
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You write one-line phone notification texts for to-do reminders. No emoji, no quotes, under 120 characters."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf("To-do %q is due at %s.", title, due.Format("Mon 15:04"))),
					},
				},
			},
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(48),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion received")
	}
	return clip(strings.TrimSpace(resp.Choices[0].Message.Content)), nil
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= maxBodyLen {
		return s
	}
	return string(runes[:maxBodyLen-3]) + "..."
}
