// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts sitecrew's transcript turns into the SDK's
// message format: the participant's instructions become the system message,
// user turns become user messages and participant turns become assistant
// messages prefixed with the author name so each role can attribute prior
// contributions.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/sitecrew/model"
	"github.com/hupe1980/sitecrew/transcript"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model with a single non-streaming completion.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &model.CompletionError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &model.CompletionError{Provider: "openai", Err: fmt.Errorf("no choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages converts instructions + transcript turns into chat messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, turn := range req.Turns {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		switch turn.Role {
		case transcript.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Text))
		case transcript.RoleParticipant:
			messages = append(messages, openai.AssistantMessage(attributed(turn)))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	return messages
}

// attributed prefixes a participant reply with its author so other roles
// can tell prior contributions apart in the shared history.
func attributed(turn transcript.Turn) string {
	if turn.Author == "" {
		return turn.Text
	}
	return fmt.Sprintf("[%s] %s", turn.Author, turn.Text)
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}
