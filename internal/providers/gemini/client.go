package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/config"
	"github.com/lizzyg/aether/internal/core"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// maxErrorBody bounds how much of a failed response ends up in logs.
const maxErrorBody = 512

// Client talks to the Gemini REST API. One Client serves text, image and
// speech generation and is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       string
	textModel    string
	imageModel   string
	speechModel  string
	defaultVoice string
	httpClient   *http.Client
	logger       *slog.Logger
	retriers     map[string]*retry.Retrier
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	observe func(op string, a retry.Attempt)
}

// WithAttemptObserver receives every upstream attempt, labelled by operation.
func WithAttemptObserver(fn func(op string, a retry.Attempt)) Option {
	return func(o *clientOptions) { o.observe = fn }
}

func New(cfg *config.Config, hc *http.Client, logger *slog.Logger, opts ...Option) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.Upstream.BaseURL, "/"),
		apiKey:       cfg.Upstream.APIKey,
		textModel:    cfg.Upstream.TextModel,
		imageModel:   cfg.Upstream.ImageModel,
		speechModel:  cfg.Upstream.SpeechModel,
		defaultVoice: cfg.Upstream.DefaultVoice,
		httpClient:   hc,
		logger:       logger,
		retriers:     make(map[string]*retry.Retrier, 3),
	}
	for _, op := range []string{core.OpText, core.OpImage, core.OpSpeech} {
		ropts := []retry.Option{
			retry.WithPredicate(retry.RetryOnStatus(cfg.Retry.RetryStatuses...)),
			retry.WithLogger(logger),
			retry.WithLabel("gemini." + op),
		}
		if o.observe != nil {
			ropts = append(ropts, retry.WithObserver(func(a retry.Attempt) { o.observe(op, a) }))
		}
		c.retriers[op] = retry.New(cfg.Retry.Policy(), ropts...)
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig *generateConfig `json:"generationConfig,omitempty"`
}

type generateConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type predictRequest struct {
	Instances  []map[string]string `json:"instances"`
	Parameters map[string]int      `json:"parameters"`
}

// GenerateText runs a single-turn generateContent call and joins the text
// parts of the first candidate.
func (c *Client) GenerateText(ctx context.Context, req core.TextRequest) (core.TextResult, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
	}
	body, err := c.post(ctx, core.OpText, c.textModel+":generateContent", payload)
	if err != nil {
		return core.TextResult{}, err
	}

	parts := gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array()
	if len(parts) == 0 {
		return core.TextResult{}, moderr.ErrNoTextData
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.String())
	}
	return core.TextResult{Text: sb.String()}, nil
}

// GenerateImage asks the image model for one sample and returns it as a PNG
// data URI.
func (c *Client) GenerateImage(ctx context.Context, req core.ImageRequest) (core.ImageResult, error) {
	payload := predictRequest{
		Instances:  []map[string]string{{"prompt": req.Prompt}},
		Parameters: map[string]int{"sampleCount": 1},
	}
	body, err := c.post(ctx, core.OpImage, c.imageModel+":predict", payload)
	if err != nil {
		return core.ImageResult{}, err
	}

	b64 := gjson.GetBytes(body, "predictions.0.bytesBase64Encoded").String()
	if b64 == "" {
		return core.ImageResult{}, moderr.ErrNoImageData
	}
	return core.ImageResult{Image: core.PNGDataURI(b64)}, nil
}

// GenerateSpeech synthesizes req.Text with a prebuilt voice. An empty voice
// falls back to the configured default.
func (c *Client) GenerateSpeech(ctx context.Context, req core.SpeechRequest) (core.SpeechResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = c.defaultVoice
	}
	sc := &speechConfig{}
	sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: req.Text}}}},
		GenerationConfig: &generateConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		},
	}
	body, err := c.post(ctx, core.OpSpeech, c.speechModel+":generateContent", payload)
	if err != nil {
		return core.SpeechResult{}, err
	}

	inline := gjson.GetBytes(body, "candidates.0.content.parts.0.inlineData")
	data := inline.Get("data").String()
	mime := inline.Get("mimeType").String()
	if data == "" || mime == "" {
		return core.SpeechResult{}, moderr.ErrNoAudioData
	}
	return core.SpeechResult{AudioData: data, MimeType: mime}, nil
}

// post sends payload to models/{method} through the operation's retrier and
// returns the raw body of the first successful response.
func (c *Client) post(ctx context.Context, op, method string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini marshal payload: %w", err)
	}
	endpoint := c.baseURL + "/models/" + method + "?key=" + url.QueryEscape(c.apiKey)

	var out []byte
	err = c.retriers[op].Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(c.redact(err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return c.redact(err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("gemini read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return retry.NewHTTPStatusError(resp.StatusCode, truncate(string(b), maxErrorBody), "gemini")
		}
		if !json.Valid(b) {
			return retry.Permanent(fmt.Errorf("gemini %s: response is not valid JSON", op))
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// redact strips the API key from URLs embedded in transport errors.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if c.apiKey != "" && errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, url.QueryEscape(c.apiKey), "REDACTED")
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
