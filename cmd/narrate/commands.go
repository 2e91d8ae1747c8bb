package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/tts/audio"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/book-expert/narrator/internal/tts/ttsutils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	outputFilePerm     = 0o644
	chunksJSONExt      = "json"
	normalizedFileName = "normalized.txt"
	concatFileName     = "concat.txt"
)

const (
	logFmtNormalized = "Normalized %s: %d characters"
	logFmtSpeaking   = "Narrating %s: %d chunks into %s"
	msgHealthy       = "TTS backend is healthy"
	msgNoHealthCheck = "TTS backend has no health check"
	msgFmtNarrated   = "Narrated %d chunks (%d reused, %s) in %s\n"
	msgFmtManifest   = "Concat manifest: %s\n"
)

var (
	// ErrUnsupportedInput is returned for input files that are neither text nor chunk JSON.
	ErrUnsupportedInput = errors.New("unsupported input file")
	// ErrNothingToNarrate is returned when the input holds no speakable text.
	ErrNothingToNarrate = errors.New("input has nothing to narrate")
)

func (a *app) newNormalizeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "normalize <input>",
		Short: "Print the narration-ready form of a text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := a.normalizeFile(args[0])
			if err != nil {
				return err
			}

			return a.writeOutput(cmd, output, []byte(normalized+"\n"))
		},
	}

	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "Write to this file instead of stdout")

	return cmd
}

func (a *app) newChunksCommand() *cobra.Command {
	var (
		output   string
		maxChars int
	)

	cmd := &cobra.Command{
		Use:   "chunks <input>",
		Short: "Normalize a text file and print its synthesis chunks as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, err := a.normalizeFile(args[0])
			if err != nil {
				return err
			}

			if maxChars <= 0 {
				maxChars = a.cfg.Text.MaxChunkChars
			}

			data, err := json.MarshalIndent(text.ChunkText(normalized, maxChars), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode chunks: %w", err)
			}

			return a.writeOutput(cmd, output, append(data, '\n'))
		},
	}

	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "Write to this file instead of stdout")
	cmd.Flags().IntVar(&maxChars, flagMaxChars, 0, "Maximum characters per chunk (config value when 0)")

	return cmd
}

func (a *app) newSpeakCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "speak <input>",
		Short: "Synthesize a text file or chunks JSON into numbered audio files",
		Long: "Synthesize a text file or chunks JSON into numbered audio files. " +
			"Audio already present from an earlier run is reused.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = a.cfg.Paths.OutputDir
			}

			return a.speak(cmd, args[0], outputDir)
		},
	}

	cmd.Flags().StringVar(&outputDir, flagOutputDir, "", "Directory for narrated books (config value when empty)")

	return cmd
}

func (a *app) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the configured TTS backend is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			synthesizer, err := tts.NewSynthesizer(a.cfg.TTS, a.log)
			if err != nil {
				return err
			}

			checker, ok := synthesizer.(tts.HealthChecker)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoHealthCheck)

				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), tts.HealthCheckTimeout)
			defer cancel()

			err = checker.HealthCheck(ctx)
			if err != nil {
				a.log.Error("Health check failed: %v", err)

				return fmt.Errorf("TTS backend is not healthy: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), msgHealthy)

			return nil
		},
	}
}

// speak synthesizes input below outputDir/<slug of the input name>.
func (a *app) speak(cmd *cobra.Command, input, outputDir string) error {
	ctx := cmd.Context()

	chunks, normalized, err := a.loadChunks(input)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return fmt.Errorf("%w: %s", ErrNothingToNarrate, input)
	}

	prefix := ttsutils.JobPrefix(input)
	store := objectstore.NewFileStoreFs(a.fs, outputDir)

	if normalized != "" {
		err = store.Upload(ctx, path.Join(prefix, normalizedFileName), []byte(normalized))
		if err != nil {
			return err
		}
	}

	synthesizer, err := tts.NewSynthesizer(a.cfg.TTS, a.log)
	if err != nil {
		return err
	}

	engine := tts.NewEngine(synthesizer, store, tts.EngineConfigFrom(a.cfg.TTS), a.log, nil)

	a.log.Info(logFmtSpeaking, input, len(chunks), filepath.Join(outputDir, prefix))

	started := time.Now()

	results, err := engine.Synthesize(ctx, prefix, chunks)
	if err != nil {
		return fmt.Errorf("narration of %s incomplete: %w", input, err)
	}

	names := make([]string, len(results))

	var (
		total   int64
		resumed int
	)

	for index, result := range results {
		names[index] = path.Base(result.Key)
		total += result.Bytes

		if result.Resumed {
			resumed++
		}
	}

	manifest, err := audio.ConcatList(names)
	if err != nil {
		return err
	}

	manifestKey := path.Join(prefix, concatFileName)

	err = store.Upload(ctx, manifestKey, []byte(manifest))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, msgFmtNarrated, len(results), resumed, ttsutils.FormatFileSize(total),
		ttsutils.FormatDuration(time.Since(started).Seconds()))
	fmt.Fprintf(out, msgFmtManifest, filepath.Join(outputDir, filepath.FromSlash(manifestKey)))

	return nil
}

// loadChunks reads a chunks JSON document as is, or normalizes and chunks a
// text file. The normalized text is empty for JSON input.
func (a *app) loadChunks(input string) ([]text.Chunk, string, error) {
	if strings.EqualFold(ttsutils.GetFileExtension(input), chunksJSONExt) {
		data, err := afero.ReadFile(a.fs, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", input, err)
		}

		chunks, err := tts.ParseChunks(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", input, err)
		}

		return chunks, "", nil
	}

	normalized, err := a.normalizeFile(input)
	if err != nil {
		return nil, "", err
	}

	return text.ChunkText(normalized, a.cfg.Text.MaxChunkChars), normalized, nil
}

func (a *app) normalizeFile(input string) (string, error) {
	if !ttsutils.IsValidTextFile(input) {
		return "", fmt.Errorf("%w: %s (expected .txt, .text or .md)", ErrUnsupportedInput, input)
	}

	data, err := afero.ReadFile(a.fs, input)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", input, err)
	}

	normalized := a.preprocessor.Normalize(string(data))
	a.log.Info(logFmtNormalized, input, len([]rune(normalized)))

	return normalized, nil
}

// writeOutput writes data to file, or to the command's output when file is empty.
func (a *app) writeOutput(cmd *cobra.Command, file string, data []byte) error {
	if file == "" {
		_, err := cmd.OutOrStdout().Write(data)
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		return nil
	}

	err := ttsutils.EnsureDir(a.fs, filepath.Dir(file))
	if err != nil {
		return err
	}

	err = afero.WriteFile(a.fs, file, data, outputFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}

	return nil
}
