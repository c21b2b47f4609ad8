// Package llm adapts the OpenRouter chat completion client to the narrow
// completion surface the agent needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	statex "github.com/dmquizhpe/ventia/agent/state"
	openrouterx "github.com/dmquizhpe/ventia/pkg/openrouter"
)

const (
	defaultAttempts = 3
	backoffBase     = 250 * time.Millisecond
)

var ErrNoClient = errors.New("no completion client configured")

// Gateway issues chat completions with a per-attempt timeout and
// exponential backoff between attempts.
type Gateway struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	attempts    int
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithAttempts sets how many times Complete retries a failing call.
func WithAttempts(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.attempts = n
		}
	}
}

func NewGateway(client *openaisdk.Client, cfg openrouterx.Config, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxCompletionToken),
		timeout:     cfg.Timeout,
		attempts:    defaultAttempts,
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Complete sends the system prompt plus history and returns the assistant
// text, retrying transient failures.
func (g *Gateway) Complete(ctx context.Context, system string, history []statex.Message) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrNoClient
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openaisdk.SystemMessage(system))
	}
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openaisdk.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.model,
		Temperature:         openaisdk.Float(g.temperature),
		MaxCompletionTokens: openaisdk.Int(g.maxTokens),
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		text, err := g.invoke(ctx, params)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < g.attempts {
			wait := backoffBase << (attempt - 1)
			log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("completion failed, retrying")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", g.attempts, lastErr)
}

func (g *Gateway) invoke(ctx context.Context, params openaisdk.ChatCompletionNewParams) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// Once returns a single-attempt view of the gateway for callers that have
// their own fallback, such as the classification chain.
func (g *Gateway) Once() *Gateway {
	if g == nil {
		return nil
	}
	once := *g
	once.attempts = 1
	return &once
}
