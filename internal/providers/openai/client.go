package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/config"
	"github.com/lizzyg/aether/internal/core"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// Client is an alternate text backend on the Chat Completions API.
type Client struct {
	cli     openai.Client
	model   string
	logger  *slog.Logger
	retrier *retry.Retrier
}

func New(cfg *config.Config, hc *http.Client, logger *slog.Logger, observe func(op string, a retry.Attempt)) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	ropts := []retry.Option{
		retry.WithPredicate(retry.RetryOnStatus(cfg.Retry.RetryStatuses...)),
		retry.WithLogger(logger),
		retry.WithLabel("openai." + core.OpText),
	}
	if observe != nil {
		ropts = append(ropts, retry.WithObserver(func(a retry.Attempt) { observe(core.OpText, a) }))
	}
	return &Client{
		cli: openai.NewClient(
			option.WithAPIKey(cfg.Upstream.OpenAIAPIKey),
			option.WithBaseURL(cfg.Upstream.OpenAIBaseURL),
			option.WithHTTPClient(hc),
			// The shared retrier owns backoff.
			option.WithMaxRetries(0),
		),
		model:   cfg.Upstream.OpenAIModel,
		logger:  logger,
		retrier: retry.New(cfg.Retry.Policy(), ropts...),
	}
}

func (c *Client) GenerateText(ctx context.Context, req core.TextRequest) (core.TextResult, error) {
	var text string
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		res, err := c.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: c.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(req.Prompt),
			},
		})
		if err != nil {
			return statusError(err)
		}
		if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
			return retry.Permanent(moderr.ErrNoTextData)
		}
		text = res.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return core.TextResult{}, err
	}
	return core.TextResult{Text: text}, nil
}

// statusError maps SDK API errors onto HTTPStatusError so the retry
// predicate sees the same shape as the other backends.
func statusError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.NewHTTPStatusError(apiErr.StatusCode, apiErr.Message, "openai")
	}
	return err
}
