// Command narrate prepares pt-BR book text for narration and drives speech
// synthesis on the local machine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/tts/text"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const cliLogFile = "narrator-cli.log"

// Flag names.
const (
	flagConfig    = "config"
	flagVoice     = "voice"
	flagSpeed     = "speed"
	flagOutput    = "output"
	flagOutputDir = "output-dir"
	flagMaxChars  = "max-chars"
)

// app carries what every subcommand shares once the root command has run.
type app struct {
	fs         afero.Fs
	configPath string
	voice      string
	speed      string

	cfg          *config.Config
	log          *logger.Logger
	preprocessor *text.Preprocessor
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, afero.NewOsFs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run builds the command tree, executes args and releases the logger.
func run(ctx context.Context, args []string, stdout io.Writer, fs afero.Fs) error {
	application := &app{fs: fs}

	cmd := application.newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	err := cmd.ExecuteContext(ctx)

	return errors.Join(err, application.close())
}

func (a *app) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "narrate",
		Short:         "Normalize, chunk and narrate pt-BR book text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, flagConfig, "", "Path to a project.toml (built-in defaults when empty)")
	flags.StringVar(&a.voice, flagVoice, "", "Voice name, e.g. pt-BR-FranciscaNeural")
	flags.StringVar(&a.speed, flagSpeed, "", "Speed multiplier, e.g. x1.25")

	cmd.AddCommand(a.newNormalizeCommand())
	cmd.AddCommand(a.newChunksCommand())
	cmd.AddCommand(a.newSpeakCommand())
	cmd.AddCommand(a.newHealthCommand())

	return cmd
}

// setup loads the configuration, applies flag overrides and opens the log.
func (a *app) setup() error {
	cfg := config.Default()

	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	if a.voice != "" {
		cfg.TTS.Voice = a.voice
	}

	if a.speed != "" {
		cfg.TTS.Speed = a.speed
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, cliLogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	preprocessor, err := tts.LoadPreprocessor(a.fs, cfg.Text)
	if err != nil {
		_ = log.Close()

		return err
	}

	a.cfg = cfg
	a.log = log
	a.preprocessor = preprocessor

	return nil
}

func (a *app) close() error {
	if a.log == nil {
		return nil
	}

	err := a.log.Close()
	if err != nil {
		return fmt.Errorf("error closing logger: %w", err)
	}

	return nil
}
