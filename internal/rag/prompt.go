package rag

import (
	"fmt"
	"strings"
	"unicode"
)

// Fallback texts.
const (
	FallbackHeaderUnconfigured = "OPENAI_API_KEY is not configured. Showing retrieval-based fallback ranked by similarity:"
	FallbackHeaderUnavailable  = "Chat completion unavailable. Showing retrieval-based fallback ranked by similarity:"
	NoPassagesMessage          = "No relevant chunks were retrieved, so I cannot answer from sources yet."
	EmptyQuestionMessage       = "Please provide a user_message."
)

// PreviewLength is the number of characters shown per passage in a fallback answer.
const PreviewLength = 220

// BuildPrompt assembles the grounding prompt for the chat model. Sources are
// numbered from 1 in retrieval order so the model can cite them as [n].
func BuildPrompt(question string, passages []Passage) string {
	sources := make([]string, 0, len(passages))
	for i, p := range passages {
		sources = append(sources, fmt.Sprintf("Source %d (doc_id=%s, file=%s, chunk=%s):\n%s",
			i+1, p.DocID, p.Filename(), p.ChunkIndex(), p.Content))
	}

	lines := []string{
		"You are a retrieval assistant. Use only the provided sources.",
		"If the sources are insufficient, say so explicitly.",
		"Return concise, practical guidance and cite source numbers inline like [1], [2].",
		"",
		"User question: " + question,
		"",
		"Retrieved sources:",
		strings.Join(sources, "\n\n"),
	}
	return strings.Join(lines, "\n")
}

// BuildFallback renders the passages as ranked evidence under header. With no
// passages it returns NoPassagesMessage.
func BuildFallback(header, question string, passages []Passage) string {
	if len(passages) == 0 {
		return NoPassagesMessage
	}

	lines := make([]string, 0, 4+3*len(passages))
	lines = append(lines, header, "", "Question: "+question, "")
	for i, p := range passages {
		lines = append(lines,
			fmt.Sprintf("[%d] score=%.4f doc=%s file=%s chunk=%s", i+1, p.Similarity, p.DocID, p.Filename(), p.ChunkIndex()),
			"    "+Preview(p.Content),
			"",
		)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Preview collapses whitespace runs to single spaces and truncates to
// PreviewLength characters, appending "..." when it truncated.
func Preview(content string) string {
	collapsed := strings.Join(strings.FieldsFunc(content, isSpace), " ")
	runes := []rune(collapsed)
	if len(runes) <= PreviewLength {
		return collapsed
	}
	return string(runes[:PreviewLength]) + "..."
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
