// Package main provides the entry point for the sayd speech daemon.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/glottech/sayd/internal/config"
	"github.com/glottech/sayd/internal/daemon"
	"github.com/glottech/sayd/internal/engine"
	"github.com/glottech/sayd/internal/pipeline"
	"github.com/glottech/sayd/internal/protocol"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	keyword   = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}).
			Render

	configFile string

	rootCmd = &cobra.Command{
		Use:   "sayd",
		Short: "Resident text-to-speech daemon",
		Long: paragraph(
			fmt.Sprintf("\nRead JSON requests on stdin, %s on stdout.", keyword("speak audio")),
		),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          execute,
	}
)

func buildConfig() config.Config {
	cfg := config.Config{
		ModelPath:       viper.GetString("model"),
		ModelConfigPath: viper.GetString("model-config"),
		ESpeakDataPath:  viper.GetString("espeak-data"),
		EngineBinary:    viper.GetString("engine-bin"),
		Accelerator:     viper.GetString("accelerator"),
		JSONL:           viper.GetBool("jsonl"),
		Stream:          viper.GetBool("stream"),
		MaxConcurrency:  viper.GetInt("max-concurrency"),
		OutputFile:      viper.GetString("output"),
		PlayAudio:       viper.GetBool("play"),
		Volume:          viper.GetFloat64("volume"),
		Debug:           viper.GetBool("debug"),
		Quiet:           viper.GetBool("quiet"),
	}

	// Environment-only settings fill gaps the flags and config file left.
	if e, err := config.FromEnv(); err == nil {
		if cfg.ModelPath == "" {
			cfg.ModelPath = e.Model
		}
		if cfg.ModelConfigPath == "" {
			cfg.ModelConfigPath = e.ModelConfig
		}
		if cfg.ESpeakDataPath == "" {
			cfg.ESpeakDataPath = e.ESpeakData
		}
		if cfg.EngineBinary == "" {
			cfg.EngineBinary = e.EngineBinary
		}
	}
	return cfg
}

func newLogger(cfg config.Config) *log.Logger {
	out := io.Writer(os.Stderr)
	if cfg.JSONL || cfg.Quiet {
		out = io.Discard
	}
	logger := log.NewWithOptions(out, log.Options{ReportTimestamp: true})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func execute(*cobra.Command, []string) error {
	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	eng, err := engine.NewPiper(engine.PiperOptions{
		Binary:          cfg.EngineBinary,
		ModelPath:       cfg.ModelPath,
		ModelConfigPath: cfg.ModelConfigPath,
		ESpeakDataPath:  cfg.ESpeakDataPath,
		Accelerator:     cfg.Accelerator,
	})
	if err != nil {
		return err
	}
	logger.Info("engine ready", "model", filepath.Base(cfg.ModelPath), "rate", eng.NativeSampleRate())

	reporter := protocol.NewReporter(os.Stderr)
	pipe := pipeline.New(cfg, eng, reporter, logger, os.Stdout)
	d := daemon.New(cfg, eng, pipe, reporter, logger, os.Stdin)
	return d.Run(context.Background())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Startup failures use the same machine-readable error stream as
		// request failures.
		protocol.NewReporter(os.Stderr).Report(err)
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringP("model", "m", "", "voice model file (ONNX)")
	rootCmd.Flags().String("model-config", "", "voice model config JSON")
	rootCmd.Flags().String("espeak-data", "", "espeak-ng data directory")
	rootCmd.Flags().String("engine-bin", "", "synthesis binary (default: piper from PATH)")
	rootCmd.Flags().String("accelerator", "", "hardware acceleration (cuda)")
	rootCmd.Flags().Bool("jsonl", false, "machine mode: only JSON and audio on the streams")
	rootCmd.Flags().IntP("max-concurrency", "j", 1, "number of synthesis workers")
	rootCmd.Flags().BoolP("stream", "s", false, "emit audio as length-prefixed frames")
	rootCmd.Flags().StringP("output", "o", "", "write audio to a file instead of stdout")
	rootCmd.Flags().Bool("play", false, "play pcm requests on the audio device")
	rootCmd.Flags().Float64("volume", 1.0, "playback volume (0.0 to 1.0)")
	rootCmd.Flags().Bool("debug", false, "verbose logging")
	rootCmd.Flags().BoolP("quiet", "q", false, "suppress logging")

	for _, name := range []string{
		"model", "model-config", "espeak-data", "engine-bin", "accelerator",
		"jsonl", "max-concurrency", "stream", "output", "play", "volume",
		"debug", "quiet",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetDefault("volume", 1.0)
	viper.SetDefault("max-concurrency", 1)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "sayd")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "sayd")}, dirs...)
	}
	if c := os.Getenv("SAYD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("sayd")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("sayd")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}
	configFile = filepath.Join(dirs[0], "sayd.yml")
}
