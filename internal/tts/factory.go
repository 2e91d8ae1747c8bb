package tts

import (
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/core"
	"github.com/book-expert/narrator/internal/numwords"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/spf13/afero"
)

// NewSynthesizer builds the backend selected by cfg.Backend.
func NewSynthesizer(cfg config.TTSServiceConfig, log *logger.Logger) (core.Synthesizer, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return NewHTTPClient(cfg.ServiceURL, cfg.Timeout()), nil
	case config.BackendEdge, "":
		binary := cfg.BinaryPath
		if binary == "" {
			binary = config.DefaultEdgeBinary
		}

		return NewEdgeCLI(binary, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// LoadPreprocessor builds the pt-BR preprocessor, merging the rules file named
// in cfg over the built-in rules when one is set.
func LoadPreprocessor(fs afero.Fs, cfg config.TextConfig) (*text.Preprocessor, error) {
	rules := text.DefaultRules()

	if cfg.RulesFile != "" {
		data, err := afero.ReadFile(fs, cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file %s: %w", cfg.RulesFile, err)
		}

		rules, err = text.DecodeRules(data)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: %w", cfg.RulesFile, err)
		}
	}

	return text.NewPreprocessor(rules, numwords.New()), nil
}
