package writer

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// DecodeAudio turns a speech result into playable bytes and a file
// extension. Raw 16-bit PCM (audio/L16) is wrapped in a mono WAV container;
// anything else is returned as sent.
func DecodeAudio(b64, mimeType string) ([]byte, string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", fmt.Errorf("decode audio: %w", err)
	}
	media, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("parse mime type %q: %w", mimeType, err)
	}
	if !strings.EqualFold(media, "audio/L16") {
		ext := strings.TrimPrefix(media, "audio/")
		return raw, "." + ext, nil
	}
	rate := 24000
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		rate = r
	}
	return pcmToWAV(raw, rate), ".wav", nil
}

// pcmToWAV prefixes little-endian 16-bit mono samples with a RIFF header.
func pcmToWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1)) // PCM
	_ = binary.Write(&buf, le, uint16(channels))
	_ = binary.Write(&buf, le, uint32(sampleRate))
	_ = binary.Write(&buf, le, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, le, uint16(blockAlign))
	_ = binary.Write(&buf, le, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeImage extracts the bytes of a base64 data URI.
func DecodeImage(dataURI string) ([]byte, error) {
	_, b64, ok := strings.Cut(dataURI, ";base64,")
	if !ok {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	return base64.StdEncoding.DecodeString(b64)
}
