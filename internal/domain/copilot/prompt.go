package copilot

import (
	"fmt"
	"strings"
)

// SystemInstructions is sent to the hosted model with every question.
const SystemInstructions = `You are a clinical decision support assistant helping healthcare providers review patient information.

Your role is to:
1. Answer questions accurately based ONLY on the provided context
2. Cite sources using [Source N] format when referencing information
3. Suggest appropriate next clinical actions
4. Be concise but thorough
5. If the context doesn't contain enough information to fully answer, say so

IMPORTANT: 
- Only use information from the provided sources
- Always cite which source(s) you used
- Do not make up information not present in the context
- Use clinical terminology appropriately`

// NoContextPlaceholder replaces the context block when there are no sources.
const NoContextPlaceholder = "No relevant context found."

const answerInstructions = `Please provide:
1. A direct answer to the question based on the context
2. 2-3 recommended next actions for the care team

Format your response as:
ANSWER: [Your answer here with citations]

NEXT ACTIONS:
- [Action 1]
- [Action 2]
- [Action 3]`

// BuildContext renders sources as numbered citation blocks.
func BuildContext(sources []Source) string {
	if len(sources) == 0 {
		return NoContextPlaceholder
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("[Source %d - %s] %s:\n%s",
			i+1, strings.ToUpper(string(s.SourceType)), s.Label, s.Snippet)
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt returns the context block and the full prompt. It is pure.
func BuildPrompt(question, patientName string, sources []Source) (context, prompt string) {
	context = BuildContext(sources)
	prompt = "Patient: " + patientName + "\n\n" +
		"Question: " + question + "\n\n" +
		"Relevant Context:\n" + context + "\n\n" +
		answerInstructions
	return context, prompt
}
