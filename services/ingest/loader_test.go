package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocID(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"Schoenfeld_2017_pmid_28834797.pdf", "PMID_28834797"},
		{"review-PMCID_PMC5451032-final.pdf", "PMCID_PMC5451032"},
		{"sources/volume_landmarks.md", "volume_landmarks"},
		{"notes.txt", "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDocID(tt.filename))
		})
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  Sets \t\tand   reps\n\n\n\n\nRest intervals  \n"
	assert.Equal(t, "Sets and reps\n\nRest intervals", NormalizeText(in))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_overload.md", "# Overload\n\nAdd load gradually.")
	writeFile(t, dir, "a_PMID_123.txt", "Protein   timing matters little.")
	writeFile(t, dir, "empty.txt", "   \n\t")
	writeFile(t, dir, "image.png", "not text")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	docs, err := LoadPaths(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "PMID_123", docs[0].DocID)
	assert.Equal(t, "a_PMID_123.txt", docs[0].Filename)
	assert.Equal(t, "Protein timing matters little.", docs[0].Text)

	assert.Equal(t, "b_overload", docs[1].DocID)
	assert.Equal(t, filepath.Join(dir, "b_overload.md"), docs[1].SourcePath)
}

func TestLoadPaths_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPaths(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	png := writeFile(t, dir, "image.png", "x")
	_, err = LoadPaths(png)
	assert.ErrorContains(t, err, "unsupported file type")

	fake := writeFile(t, dir, "fake.pdf", "this is not a pdf")
	_, err = LoadPaths(fake)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.PDF"))
	assert.True(t, Supported("a.md"))
	assert.True(t, Supported("a.txt"))
	assert.False(t, Supported("a.docx"))
}
