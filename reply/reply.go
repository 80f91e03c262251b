package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"chatrelay/models"
)

// historyWindow bounds how much conversation is replayed per request.
const historyWindow = 20

// Config configures the reply generation client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client generates conversational replies for simulated contacts through
// an OpenAI-compatible chat completions API.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a reply client.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	cl := openai.NewClient(opts...)
	return &Client{
		client: &cl,
		model:  cfg.Model,
	}
}

// GenerateReply produces one in-character reply for a simulated contact
// given its recent conversation history.
func (c *Client) GenerateReply(ctx context.Context, contact models.Contact, history []models.ChatMessage) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(personaPrompt(contact)),
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, msg := range history {
		content := msg.Content
		if content == "" && msg.Attachment != nil {
			content = fmt.Sprintf("[sent a %s attachment]", msg.Attachment.Type)
		}
		if msg.Role == models.RoleUser {
			messages = append(messages, openai.UserMessage(content))
		} else {
			messages = append(messages, openai.AssistantMessage(content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion for %q: %w", contact.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func personaPrompt(contact models.Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a contact in a casual chat application. ", contact.Name)
	if contact.Bio != "" {
		fmt.Fprintf(&b, "About you: %s. ", contact.Bio)
	}
	if contact.Status != "" {
		fmt.Fprintf(&b, "Your current status: %s. ", contact.Status)
	}
	b.WriteString("Answer the latest message naturally and briefly, staying in character.")
	return b.String()
}
