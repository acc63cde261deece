package relay

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/core"
	"github.com/lizzyg/aether/internal/util"
)

// TextBody is the body of POST /generate-text.
type TextBody struct {
	Prompt string `json:"prompt" binding:"required" jsonschema:"minLength=1"`
}

// ImageBody is the body of POST /generate-image.
type ImageBody struct {
	Prompt string `json:"prompt" binding:"required" jsonschema:"minLength=1"`
}

// SpeechBody is the body of POST /generate-tts. Voice names a prebuilt voice.
type SpeechBody struct {
	Text  string `json:"text" binding:"required" jsonschema:"minLength=1"`
	Voice string `json:"voice,omitempty"`
}

type ContactBody struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
}

var failureMessages = map[string]string{
	core.OpText:   "Failed to generate text.",
	core.OpImage:  "Failed to generate image.",
	core.OpSpeech: "Failed to generate speech.",
}

func (s *Server) generateText(c *gin.Context) {
	var body TextBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required."})
		return
	}
	res, err := s.gens.Text.GenerateText(c.Request.Context(), core.TextRequest{Prompt: body.Prompt})
	if err != nil {
		s.fail(c, core.OpText, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) generateImage(c *gin.Context) {
	var body ImageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required."})
		return
	}
	res, err := s.gens.Image.GenerateImage(c.Request.Context(), core.ImageRequest{Prompt: body.Prompt})
	if err != nil {
		s.fail(c, core.OpImage, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) generateSpeech(c *gin.Context) {
	var body SpeechBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required."})
		return
	}
	res, err := s.gens.Speech.GenerateSpeech(c.Request.Context(), core.SpeechRequest{Text: body.Text, Voice: body.Voice})
	if err != nil {
		s.fail(c, core.OpSpeech, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail logs the cause and answers with a fixed message. Upstream detail never
// reaches the client.
func (s *Server) fail(c *gin.Context, op string, err error) {
	msg := failureMessages[op]
	switch {
	case errors.Is(err, moderr.ErrNoImageData):
		msg = "No image data was returned."
	case errors.Is(err, moderr.ErrNoAudioData):
		msg = "No audio data was returned."
	}
	s.logger.Error("generation failed",
		slog.String(requestIDKey, requestIDFrom(c)),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func (s *Server) contact(kind, reply string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body ContactBody
		_ = c.ShouldBindJSON(&body)
		s.logger.Info("contact form received",
			slog.String(requestIDKey, requestIDFrom(c)),
			slog.String("kind", kind),
			slog.String("name", body.Name),
			slog.String("email", body.Email),
			slog.String("message", body.Message),
		)
		c.JSON(http.StatusOK, gin.H{"message": reply})
	}
}

var requestSchemas = util.SchemaSet(map[string]any{
	"generate-text":  &TextBody{},
	"generate-image": &ImageBody{},
	"generate-tts":   &SpeechBody{},
	"contact":        &ContactBody{},
})

func (s *Server) schema(c *gin.Context) {
	c.JSON(http.StatusOK, requestSchemas)
}
