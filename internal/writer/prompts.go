// Package writer builds the prompts behind the writing tools and tidies what
// comes back.
package writer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUnknownTool = errors.New("unknown writing tool")

// Length selects how long a generated story should be.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Tone is free-form; ToneNone leaves the tone to the model.
type Tone string

const (
	ToneNone      Tone = "none"
	ToneWhimsical Tone = "whimsical"
	ToneDark      Tone = "dark"
	ToneHopeful   Tone = "hopeful"
	ToneHumorous  Tone = "humorous"

	// ToneInformative is the blog outline default and adds no instruction.
	ToneInformative Tone = "Informative"
)

var lengthInstructions = map[Length]string{
	LengthShort:  "Write a concise short story, around 1-2 paragraphs.",
	LengthMedium: "Write an engaging short story, around 3-4 paragraphs.",
	LengthLong:   "Write a detailed story, around 5-6 paragraphs.",
}

// ParseLength accepts short, medium or long in any case.
func ParseLength(s string) (Length, error) {
	l := Length(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := lengthInstructions[l]; !ok {
		return "", fmt.Errorf("unknown story length %q (want short, medium or long)", s)
	}
	return l, nil
}

// StoryPrompt asks for a story built on idea.
func StoryPrompt(idea string, length Length, tone Tone) string {
	var sb strings.Builder
	sb.WriteString(lengthInstructions[length])
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString("Use the following idea: ")
	sb.WriteString(idea)
	if tone != "" && tone != ToneNone {
		fmt.Fprintf(&sb, " Write the story with a %s tone.", tone)
	}
	return sb.String()
}

// ParagraphPrompt asks for a single paragraph about topic.
func ParagraphPrompt(topic string) string {
	return "Write a detailed, informative, and cohesive paragraph about the following topic: " + topic
}

// BlogOutlinePrompt asks for a structured outline. Empty audience is omitted.
func BlogOutlinePrompt(topic string, tone Tone, audience string) string {
	var sb strings.Builder
	sb.WriteString("Create a detailed and well-structured blog post outline for the following topic. " +
		"The outline should include a title, an introduction, 3-4 main sections with sub-points, and a conclusion.")
	if tone != "" && tone != ToneInformative {
		fmt.Fprintf(&sb, " Use a %s tone.", tone)
	}
	if audience = strings.TrimSpace(audience); audience != "" {
		fmt.Fprintf(&sb, " The target audience is %s.", audience)
	}
	sb.WriteString("\n\nTopic: ")
	sb.WriteString(topic)
	return sb.String()
}

var listDash = regexp.MustCompile(`(?m)^- `)

// CleanOutline strips markdown emphasis and leading list dashes.
func CleanOutline(s string) string {
	return listDash.ReplaceAllString(strings.ReplaceAll(s, "*", ""), "")
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
