package errors

import "errors"

var (
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrNonRetryableStatus = errors.New("non-retryable status")
	ErrAttemptTimeout     = errors.New("attempt deadline exceeded")
	ErrUnknownEndpoint    = errors.New("unknown endpoint")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingAPIKey      = errors.New("missing upstream API key")

	ErrNoTextData  = errors.New("no text data in upstream response")
	ErrNoImageData = errors.New("no image data in upstream response")
	ErrNoAudioData = errors.New("no audio data in upstream response")
)
