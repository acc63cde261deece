package writer

import (
	"fmt"
	"strings"
)

// Tool is a follow-up action on an existing story.
type Tool string

const (
	ToolSummarize    Tool = "summarize"
	ToolContinue     Tool = "continue"
	ToolRewrite      Tool = "rewrite"
	ToolAltEnding    Tool = "alt-ending"
	ToolPerspective  Tool = "perspective"
	ToolCharacter    Tool = "character"
	ToolTitle        Tool = "title"
	ToolDialogue     Tool = "dialogue"
	ToolElaborate    Tool = "elaborate"
	ToolPlotTwist    Tool = "plot-twist"
	ToolNewCharacter Tool = "new-character"
)

// Tools lists every tool in menu order.
var Tools = []Tool{
	ToolSummarize, ToolContinue, ToolRewrite, ToolAltEnding, ToolPerspective,
	ToolCharacter, ToolTitle, ToolDialogue, ToolElaborate, ToolPlotTwist, ToolNewCharacter,
}

var toolInstructions = map[Tool]string{
	ToolSummarize: "Summarize the following story in a single, concise paragraph:",
	ToolContinue: "Continue the following story by writing one more paragraph. " +
		"Do not rewrite the whole story, just add a new paragraph at the end:",
	ToolAltEnding: "Write a completely different and surprising ending for the following story. " +
		"The ending should be a single paragraph:",
	ToolPerspective: `Rewrite the following story in the third-person point of view ` +
		`(using "he," "she," or "they" instead of "I" or "we"). Maintain the original plot and tone:`,
	ToolCharacter: "Based on the following story, provide a detailed character profile for the main protagonist. " +
		"Include their personality, a brief physical description, motivations, and a short background. " +
		"Format the output with clear headings for each section. Here is the story:",
	ToolTitle: "Suggest five creative and engaging titles for the following story. " +
		"The output should be a simple numbered list:",
	ToolDialogue: "Based on the following story, write a short dialogue scene between the main characters. " +
		"The dialogue should be natural and move the plot forward. " +
		"Do not include a full narrative, just the dialogue scene. Here is the story:",
	ToolElaborate: "Expand on the last scene of the following story by adding more detail, sensory descriptions, " +
		"and character thoughts to make it more immersive. " +
		"Do not rewrite the entire story, just provide the expanded scene. Here is the story:",
	ToolPlotTwist: "Based on the following story, suggest a surprising and creative plot twist " +
		"that could change the direction of the narrative. The twist should be a single paragraph. Here is the story:",
	ToolNewCharacter: "Based on the following story, suggest a new character that would be interesting to introduce. " +
		"Provide a name, a brief personality description, and their role in the story. " +
		"Format the output with clear headings. Here is the story:",
}

// ToolPrompt builds the prompt for tool applied to story. genre is only
// used by ToolRewrite.
func ToolPrompt(tool Tool, story, genre string) (string, error) {
	if tool == ToolRewrite {
		if strings.TrimSpace(genre) == "" {
			return "", fmt.Errorf("rewrite needs a genre")
		}
		return fmt.Sprintf("Rewrite the following story in the style of a %s story. "+
			"Focus on the tone and atmosphere:\n\n%s", genre, story), nil
	}
	instr, ok := toolInstructions[tool]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, string(tool))
	}
	return instr + "\n\n" + story, nil
}

// Merge folds a tool's output back into the story. Tools that produce
// standalone material (titles, profiles, dialogue, twists, summaries) return
// the output unchanged.
func Merge(tool Tool, story, output string) string {
	switch tool {
	case ToolContinue:
		return story + "\n\n" + output
	case ToolAltEnding, ToolElaborate:
		paras := strings.Split(story, "\n\n")
		body := strings.Join(paras[:len(paras)-1], "\n\n")
		if body == "" {
			return output
		}
		return body + "\n\n" + output
	default:
		return output
	}
}
