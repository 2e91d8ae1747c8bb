package tts

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/core"
)

const (
	extensionMP3   = "mp3"
	defaultRate    = "+0%"
	speedPrefix    = "x"
	percentPerUnit = 100
)

// EdgeCLI implements core.Synthesizer by running the edge-tts command line
// tool, which writes MP3 audio to a file.
type EdgeCLI struct {
	binary string
	log    *logger.Logger
}

// NewEdgeCLI returns a synthesizer that runs binary.
func NewEdgeCLI(binary string, log *logger.Logger) *EdgeCLI {
	return &EdgeCLI{binary: binary, log: log}
}

// Extension implements core.Synthesizer.
func (p *EdgeCLI) Extension() string {
	return extensionMP3
}

// HealthCheck reports whether the binary can be found.
func (p *EdgeCLI) HealthCheck(context.Context) error {
	_, err := exec.LookPath(p.binary)
	if err != nil {
		return fmt.Errorf("edge-tts binary %q: %w", p.binary, err)
	}

	return nil
}

// Synthesize takes text and returns the raw audio data by calling the binary.
func (p *EdgeCLI) Synthesize(ctx context.Context, text string, opts core.SynthesisOptions) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrTextEmpty
	}

	tempFile, err := os.CreateTemp("", "narrator-*."+extensionMP3)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	tempPath := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	defer func() {
		removeErr := os.Remove(tempPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			p.log.Warn("Failed to remove temp file '%s': %v", tempPath, removeErr)
		}
	}()

	// #nosec G204 -- the binary comes from configuration and text is passed as a single argument
	cmd := exec.CommandContext(ctx, p.binary, EdgeArgs(text, opts, tempPath)...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s execution failed: %w - output: %s", p.binary, err, string(output))
	}

	audioData, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// EdgeArgs builds the edge-tts argument list. The rate uses the "--rate=" form
// because a negative value would otherwise be parsed as a flag.
func EdgeArgs(text string, opts core.SynthesisOptions, outputPath string) []string {
	args := make([]string, 0, 7)

	if opts.Voice != "" {
		args = append(args, "--voice", opts.Voice)
	}

	return append(args,
		"--rate="+SpeedToRate(opts.Speed),
		"--text", text,
		"--write-media", outputPath,
	)
}

// SpeedToRate converts a speed multiplier such as "x1.25" into the relative
// rate "+25%". Anything unparsable yields "+0%".
func SpeedToRate(speed string) string {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(speed)), speedPrefix)

	multiplier, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return defaultRate
	}

	return fmt.Sprintf("%+d%%", int(math.Round((multiplier-1)*percentPerUnit)))
}
