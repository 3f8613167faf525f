package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadScriptSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.scr")
	content := "analogue_output y;\ny = 1\n"
	assert.Nil(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := readScriptSource([]string{path})
	assert.Equal(t, nil, err, "unexpected error")
	assert.Equal(t, content, result, "result mismatch")
}

func TestReadScriptSource_MissingFile(t *testing.T) {
	_, err := readScriptSource([]string{"/nonexistent/prog.scr"})
	assert.NotNil(t, err, "expected error for missing file")
}

func TestReadScriptSource_Stdin(t *testing.T) {
	stdinContent := "digital_output d;\nd = True\n"

	// mocking
	originalStdin := os.Stdin
	r, w, _ := os.Pipe()
	w.WriteString(stdinContent)
	w.Close()
	os.Stdin = r
	defer func() { os.Stdin = originalStdin }()

	result, err := readScriptSource([]string{"-"})
	assert.Equal(t, nil, err, "unexpected error")
	assert.Equal(t, stdinContent, result, "result mismatch")
}
