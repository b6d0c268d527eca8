package chat

import (
	"fmt"
	"strings"

	"github.com/campusbot/campusbot/internal/index"
	"github.com/campusbot/campusbot/internal/session"
)

// Prompt label constants. The history rendering labels double as the
// markers cleanResponse strips when the model echoes them back.
const (
	historyUserLabel      = "Previous User Query:"
	historyAssistantLabel = "Previous Response:"

	userMarker      = "User:"
	assistantMarker = "Assistant:"
)

// buildPrompt composes the single prompt sent to the model: a fixed system
// instruction, the rendered session history, the retrieved chunk context,
// and the current question.
func buildPrompt(institution string, history []session.Turn, chunks []index.Result, query string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a helpful customer support assistant for students of %s.
Answer the question using the provided context. If the context does not
contain the answer, say so honestly instead of guessing. Be polite,
professional, and concise.`, institution)
	b.WriteString("\n\n")

	if h := renderHistory(history); h != "" {
		b.WriteString("Previous conversation (for context only, do not repeat it):\n")
		b.WriteString(h)
		b.WriteString("\n")
	}

	if c := renderContext(chunks); c != "" {
		b.WriteString("Context:\n")
		b.WriteString(c)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(`Answer directly. Do not prefix your answer with labels such as "User:" or "Assistant:" and do not restate the question.`)

	return b.String()
}

// renderHistory flattens prior turns into labeled lines, oldest first.
func renderHistory(history []session.Turn) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range history {
		switch t.Role {
		case session.RoleUser:
			b.WriteString(historyUserLabel)
		case session.RoleAssistant:
			b.WriteString(historyAssistantLabel)
		default:
			continue
		}
		b.WriteString(" ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// renderContext joins chunk contents in retrieval order.
func renderContext(chunks []index.Result) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

// cleanResponse strips conversational scaffolding the model sometimes
// echoes back. Everything up to and including the last "Assistant:" or
// "User:" marker is removed, then surrounding whitespace is trimmed.
func cleanResponse(text string) string {
	cut := -1
	width := 0
	if i := strings.LastIndex(text, assistantMarker); i > cut {
		cut, width = i, len(assistantMarker)
	}
	if i := strings.LastIndex(text, userMarker); i > cut {
		cut, width = i, len(userMarker)
	}
	if cut >= 0 {
		text = text[cut+width:]
	}
	return strings.TrimSpace(text)
}
