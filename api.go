package aether

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lizzyg/aether/internal/core"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// Endpoint names one of the relay's generation routes.
type Endpoint string

const (
	EndpointText   Endpoint = "generate-text"
	EndpointImage  Endpoint = "generate-image"
	EndpointSpeech Endpoint = "generate-tts"
)

// Valid reports whether e is one of the known endpoints.
func (e Endpoint) Valid() bool {
	switch e {
	case EndpointText, EndpointImage, EndpointSpeech:
		return true
	}
	return false
}

// Payload and result types shared with the relay.
type (
	TextRequest   = core.TextRequest
	TextResult    = core.TextResult
	ImageRequest  = core.ImageRequest
	ImageResult   = core.ImageResult
	SpeechRequest = core.SpeechRequest
	SpeechResult  = core.SpeechResult
)

// RetryConfig controls attempts and backoff for a Caller.
type RetryConfig = retry.Config

// Attempt describes one try of a call.
type Attempt = retry.Attempt

// DefaultRetryConfig is five attempts with delays of 1s, 2s, 4s and 8s
// between them.
func DefaultRetryConfig() RetryConfig { return retry.DefaultConfig() }

// Execute calls ep and decodes the JSON response into T.
func Execute[T any](ctx context.Context, c *Caller, ep Endpoint, payload any) (T, error) {
	var out T
	raw, err := c.Call(ctx, ep, payload)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", ep, err)
	}
	return out, nil
}

// GenerateText asks the relay for text continuing prompt.
func (c *Caller) GenerateText(ctx context.Context, prompt string) (TextResult, error) {
	return Execute[TextResult](ctx, c, EndpointText, TextRequest{Prompt: prompt})
}

// GenerateImage asks the relay for an image; the result is a data URI.
func (c *Caller) GenerateImage(ctx context.Context, prompt string) (ImageResult, error) {
	return Execute[ImageResult](ctx, c, EndpointImage, ImageRequest{Prompt: prompt})
}

// GenerateSpeech asks the relay to read text aloud. An empty voice lets the
// relay pick its default.
func (c *Caller) GenerateSpeech(ctx context.Context, text, voice string) (SpeechResult, error) {
	return Execute[SpeechResult](ctx, c, EndpointSpeech, SpeechRequest{Text: text, Voice: voice})
}
