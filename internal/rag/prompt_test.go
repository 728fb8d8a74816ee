package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("What is progressive overload?", samplePassages())

	assert.True(t, strings.HasPrefix(prompt, "You are a retrieval assistant. Use only the provided sources.\n"))
	assert.Contains(t, prompt, "If the sources are insufficient, say so explicitly.")
	assert.Contains(t, prompt, "cite source numbers inline like [1], [2].")
	assert.Contains(t, prompt, "User question: What is progressive overload?")
	assert.Contains(t, prompt, "Source 1 (doc_id=overload_chunk_0000, file=overload.pdf, chunk=0):\nProgressive overload means")
	assert.Contains(t, prompt, "Source 3 (doc_id=volume_chunk_0003, file=volume.md, chunk=3):\nWeekly set volume")
	assert.Contains(t, prompt, "gradually increasing training stress.\n\nSource 2")
}

func TestBuildPrompt_MissingMetadata(t *testing.T) {
	prompt := BuildPrompt("q", []Passage{{DocID: "d9", Content: "text"}})

	assert.Contains(t, prompt, "Source 1 (doc_id=d9, file=unknown, chunk=unknown):\ntext")
}

func TestBuildPrompt_NoPassages(t *testing.T) {
	prompt := BuildPrompt("q", nil)

	assert.True(t, strings.HasSuffix(prompt, "Retrieved sources:\n"))
}

func TestBuildFallback(t *testing.T) {
	answer := BuildFallback(FallbackHeaderUnconfigured, "What is progressive overload?", samplePassages())

	assert.True(t, strings.HasPrefix(answer, FallbackHeaderUnconfigured))
	assert.Contains(t, answer, "Question: What is progressive overload?")
	assert.Contains(t, answer, "[1] score=0.9100 doc=overload_chunk_0000 file=overload.pdf chunk=0")
	assert.Contains(t, answer, "[3] score=0.7200 doc=volume_chunk_0003 file=volume.md chunk=3")
	assert.Contains(t, answer, "\n    Weekly set volume drives hypertrophy.")
	assert.False(t, strings.HasSuffix(answer, "\n"))

	evidenceLines := 0
	for _, line := range strings.Split(answer, "\n") {
		if strings.HasPrefix(line, "[") {
			evidenceLines++
		}
	}
	assert.Equal(t, 3, evidenceLines)
}

func TestBuildFallback_NoPassages(t *testing.T) {
	assert.Equal(t, NoPassagesMessage, BuildFallback(FallbackHeaderUnconfigured, "q", nil))
	assert.Equal(t, NoPassagesMessage, BuildFallback(FallbackHeaderUnavailable, "q", []Passage{}))
}

func TestPreview(t *testing.T) {
	t.Run("collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "a b c", Preview("  a\n\n b\t\tc  "))
	})

	t.Run("short content untouched", func(t *testing.T) {
		assert.Equal(t, "short", Preview("short"))
	})

	t.Run("exactly the limit", func(t *testing.T) {
		content := strings.Repeat("x", PreviewLength)
		assert.Equal(t, content, Preview(content))
	})

	t.Run("truncates with ellipsis", func(t *testing.T) {
		got := Preview(strings.Repeat("y", PreviewLength+30))
		require.True(t, strings.HasSuffix(got, "..."))
		assert.Len(t, []rune(strings.TrimSuffix(got, "...")), PreviewLength)
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		got := Preview(strings.Repeat("é", PreviewLength))
		assert.Equal(t, strings.Repeat("é", PreviewLength), got)
	})

	t.Run("whitespace collapse happens before truncation", func(t *testing.T) {
		content := strings.Repeat("ab     ", 40)
		got := Preview(content)
		assert.Equal(t, strings.TrimSpace(strings.Repeat("ab ", 40)), got)
	})
}
