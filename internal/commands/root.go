package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/buildinfo"
	"github.com/cleared-dev/densify/internal/config"
)

// options is shared by every subcommand. It is filled in by the root
// command's pre-run hook.
type options struct {
	configPath string
	logFormat  string
	verbose    bool

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:     "densify",
		Short:   "Turn sparse financial statements into a balanced monthly ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(o.configPath)
			if err != nil {
				return err
			}
			o.cfg = cfg
			level, err := o.resolveLevel()
			if err != nil {
				return err
			}
			o.logger = newLogger(cmd.ErrOrStderr(), o.resolveLogFormat(cmd), level)
			log.Logger = o.logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.configPath, "config", config.FileName, "path to densify.yaml")
	rootCmd.PersistentFlags().StringVar(&o.logFormat, "log-format", "", "log output: human or json (default from LOG_FORMAT or config)")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log every densified account")

	rootCmd.AddCommand(
		newRunCommand(o),
		newVerifyCommand(o),
		newImportCommand(o),
		newProfilesCommand(),
		newInitCommand(),
	)

	return rootCmd
}

// resolveLogFormat prefers the flag, then LOG_FORMAT, then the config file.
func (o *options) resolveLogFormat(cmd *cobra.Command) string {
	if cmd.Flags().Changed("log-format") {
		return o.logFormat
	}
	if f, ok := os.LookupEnv("LOG_FORMAT"); ok {
		return f
	}
	return o.cfg.Log.Format
}

// resolveLevel is debug with --verbose, else the configured level, else info.
func (o *options) resolveLevel() (zerolog.Level, error) {
	switch {
	case o.verbose:
		return zerolog.DebugLevel, nil
	case o.cfg.Log.Level != "":
		level, err := zerolog.ParseLevel(o.cfg.Log.Level)
		if err != nil {
			return zerolog.NoLevel, fmt.Errorf("log.level: %w", err)
		}
		return level, nil
	default:
		return zerolog.InfoLevel, nil
	}
}

func newLogger(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
