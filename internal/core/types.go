package core

import "context"

// Operation names, shared by logs and metrics labels.
const (
	OpText   = "text"
	OpImage  = "image"
	OpSpeech = "speech"
)

// TextGenerator is implemented by text-completion backends.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (TextResult, error)
}

// ImageGenerator is implemented by image-synthesis backends.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// SpeechGenerator is implemented by text-to-speech backends.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// TextRequest doubles as the relay's wire payload, hence the JSON tags.
type TextRequest struct {
	Prompt string `json:"prompt"`
}

type TextResult struct {
	Text string `json:"text"`
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResult holds the image as a data URI.
type ImageResult struct {
	Image string `json:"image"`
}

type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// SpeechResult carries base64 audio and the mime type reported by the provider.
type SpeechResult struct {
	AudioData string `json:"audioData"`
	MimeType  string `json:"mimeType"`
}

// PNGDataURI wraps base64-encoded PNG bytes as a data URI.
func PNGDataURI(b64 string) string {
	return "data:image/png;base64," + b64
}
