package tts_test

import (
	"testing"

	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSynthesizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       config.TTSServiceConfig
		extension string
		wantErr   error
	}{
		{
			name:      "http backend",
			cfg:       config.TTSServiceConfig{Backend: config.BackendHTTP, ServiceURL: "http://localhost:8000", TimeoutSeconds: 5},
			extension: "wav",
		},
		{name: "edge backend", cfg: config.TTSServiceConfig{Backend: config.BackendEdge}, extension: "mp3"},
		{name: "default backend", cfg: config.TTSServiceConfig{}, extension: "mp3"},
		{name: "unknown backend", cfg: config.TTSServiceConfig{Backend: "piper"}, wantErr: config.ErrUnknownBackend},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			synthesizer, err := tts.NewSynthesizer(tc.cfg, createTestLogger(t))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.extension, synthesizer.Extension())
		})
	}
}

func TestLoadPreprocessor(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/narrator/rules.toml", []byte(`
[[abbreviations]]
form = "cia."
expansion = "companhia"
`), 0o600))

	preprocessor, err := tts.LoadPreprocessor(fs, config.TextConfig{RulesFile: "/etc/narrator/rules.toml"})
	require.NoError(t, err)
	assert.Equal(t, "A companhia chegou com o Doutor Silva.", preprocessor.Normalize("A cia. chegou com o Dr. Silva"))

	builtin, err := tts.LoadPreprocessor(fs, config.TextConfig{})
	require.NoError(t, err)
	assert.Equal(t, "A cia. chegou.", builtin.Normalize("A cia. chegou"))

	_, err = tts.LoadPreprocessor(fs, config.TextConfig{RulesFile: "/etc/narrator/missing.toml"})
	require.Error(t, err)
}
