package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeParagraphs = "Primeiro parágrafo da história.\n\nSegundo parágrafo da história.\n\nTerceiro parágrafo da história."

// fakeEdgeScript writes 300 bytes after an ID3 tag to the --write-media path.
const fakeEdgeScript = `#!/bin/sh
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--write-media" ]; then
    shift
    printf 'ID3%0300d' 0 > "$1"
  fi
  shift
done
`

// writeConfig writes a project.toml whose logs go to a test directory.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	content := fmt.Sprintf("[paths]\nbase_logs_dir = %q\noutput_dir = %q\n%s", dir, filepath.Join(dir, "saida"), extra)

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer

	err := run(context.Background(), args, &stdout, fs)

	return stdout.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/livros/conto.txt", []byte("O Dr. Silva tinha 2 cães"), 0o600))

	configPath := writeConfig(t, "")

	output, err := execute(t, fs, "--config", configPath, "normalize", "/livros/conto.txt")
	require.NoError(t, err)
	assert.Equal(t, "O Doutor Silva tinha dois cães.\n", output)

	output, err = execute(t, fs, "--config", configPath, "normalize", "/livros/conto.txt", "-o", "/saida/conto.txt")
	require.NoError(t, err)
	assert.Empty(t, output)

	written, err := afero.ReadFile(fs, "/saida/conto.txt")
	require.NoError(t, err)
	assert.Equal(t, "O Doutor Silva tinha dois cães.\n", string(written))
}

func TestChunksCommand(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/livros/longo.md", []byte(threeParagraphs), 0o600))

	output, err := execute(t, fs, "--config", writeConfig(t, ""), "chunks", "/livros/longo.md", "--max-chars", "40")
	require.NoError(t, err)

	var chunks []text.Chunk

	require.NoError(t, json.Unmarshal([]byte(output), &chunks))
	require.Len(t, chunks, 3)
	assert.Equal(t, text.Chunk{Index: 2, Total: 3, Text: "Segundo parágrafo da história."}, chunks[1])
}

func TestCommands_Errors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/livros/capa.pdf", []byte("%PDF"), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/livros/vazio.JSON", []byte("[]"), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name:    "unsupported input",
			args:    []string{"--config", writeConfig(t, ""), "normalize", "/livros/capa.pdf"},
			wantErr: ErrUnsupportedInput,
		},
		{
			name:    "unknown backend",
			args:    []string{"--config", writeConfig(t, "[tts_service]\nbackend = \"piper\"\n"), "health"},
			wantErr: config.ErrUnknownBackend,
		},
		{
			name:    "chunks json by extension",
			args:    []string{"--config", writeConfig(t, ""), "speak", "/livros/vazio.JSON"},
			wantErr: tts.ErrNoChunksFound,
		},
		{
			name: "missing input",
			args: []string{"--config", writeConfig(t, ""), "chunks", "/livros/nada.txt"},
		},
		{
			name: "missing argument",
			args: []string{"--config", writeConfig(t, ""), "normalize"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := execute(t, fs, tc.args...)
			require.Error(t, err)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestHealthCommand_HTTP(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	configPath := writeConfig(t, fmt.Sprintf("[tts_service]\nbackend = \"http\"\nservice_url = %q\n", server.URL))

	output, err := execute(t, afero.NewMemMapFs(), "--config", configPath, "health")
	require.NoError(t, err)
	assert.Equal(t, "TTS backend is healthy\n", output)
}

// Not parallel: writing and then executing the script while other tests fork
// can fail with "text file busy".
func TestSpeakCommand_Resume(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script backend")
	}

	dir := t.TempDir()
	binary := filepath.Join(dir, "edge-tts")
	require.NoError(t, os.WriteFile(binary, []byte(fakeEdgeScript), 0o700))

	input := filepath.Join(dir, "Meu Livro.txt")
	require.NoError(t, os.WriteFile(input, []byte(threeParagraphs), 0o600))

	configPath := writeConfig(t, fmt.Sprintf("[tts_service]\nbackend = \"edge\"\nbinary_path = %q\n[text]\nmax_chunk_chars = 40\n", binary))
	outputDir := filepath.Join(dir, "saida")
	fs := afero.NewOsFs()

	output, err := execute(t, fs, "--config", configPath, "--voice", "pt-BR-AntonioNeural", "speak", input, "--output-dir", outputDir)
	require.NoError(t, err)
	assert.Contains(t, output, "Narrated 3 chunks (0 reused")

	bookDir := filepath.Join(outputDir, "meu-livro")

	for _, name := range []string{"chunk_0001.mp3", "chunk_0002.mp3", "chunk_0003.mp3"} {
		info, statErr := os.Stat(filepath.Join(bookDir, name))
		require.NoError(t, statErr)
		assert.Equal(t, int64(303), info.Size())
	}

	manifest, err := os.ReadFile(filepath.Join(bookDir, "concat.txt"))
	require.NoError(t, err)
	assert.Equal(t, "file 'chunk_0001.mp3'\nfile 'chunk_0002.mp3'\nfile 'chunk_0003.mp3'\n", string(manifest))

	normalized, err := os.ReadFile(filepath.Join(bookDir, "normalized.txt"))
	require.NoError(t, err)
	assert.Equal(t, threeParagraphs, string(normalized))

	output, err = execute(t, fs, "--config", configPath, "speak", input, "--output-dir", outputDir)
	require.NoError(t, err)
	assert.Contains(t, output, "Narrated 3 chunks (3 reused")
}
