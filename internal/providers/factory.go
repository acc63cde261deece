package providers

import (
	"fmt"
	"log/slog"
	"net/http"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/config"
	"github.com/lizzyg/aether/internal/core"
	"github.com/lizzyg/aether/internal/providers/gemini"
	"github.com/lizzyg/aether/internal/providers/openai"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// Set bundles the three generators the relay serves.
type Set struct {
	Text   core.TextGenerator
	Image  core.ImageGenerator
	Speech core.SpeechGenerator
}

// NewSet builds the generators described by cfg. Image and speech always use
// Gemini; text uses cfg.Upstream.TextProvider.
func NewSet(cfg *config.Config, hc *http.Client, logger *slog.Logger, observe func(op string, a retry.Attempt)) (Set, error) {
	var gopts []gemini.Option
	if observe != nil {
		gopts = append(gopts, gemini.WithAttemptObserver(observe))
	}
	g := gemini.New(cfg, hc, logger, gopts...)

	set := Set{Image: g, Speech: g}
	switch cfg.Upstream.TextProvider {
	case config.ProviderGemini:
		set.Text = g
	case config.ProviderOpenAI:
		set.Text = openai.New(cfg, hc, logger, observe)
	default:
		return Set{}, fmt.Errorf("text provider %q: %w", cfg.Upstream.TextProvider, moderr.ErrUnknownProvider)
	}
	return set, nil
}
