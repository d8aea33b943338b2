// Package common provides the logging setup and startup sequence shared by the scanview commands.
package common

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/CompassSecurity/scanview/pkg/format"
	"github.com/CompassSecurity/scanview/pkg/httpclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version information - set via ldflags during build
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// logOptions holds the persistent logging flags of the root command.
type logOptions struct {
	json        bool
	file        string
	color       bool
	verbose     bool
	level       string
	ignoreProxy bool
}

var (
	opts      logOptions
	termState *term.State
)

var explicitLevels = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

var levelColors = map[string]string{
	"trace": "\x1b[90m",
	"info":  "\x1b[32m",
	"warn":  "\x1b[33m",
	"error": "\x1b[31m",
	"fatal": "\x1b[31m",
	"panic": "\x1b[31m",
}

// lineWriter ends every log line with the platform newline.
// zerolog always terminates events with "\n", see https://github.com/rs/zerolog/blob/master/log.go#L474
type lineWriter struct {
	out *os.File
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)

	line := append(bytes.TrimSuffix(p, []byte("\n")), newline()...)
	written, err := w.out.Write(line)
	if err != nil {
		return 0, err
	}
	if written != len(line) {
		return 0, io.ErrShortWrite
	}
	return n, nil
}

func newline() []byte {
	if runtime.GOOS == "windows" {
		return []byte("\n\r")
	}
	return []byte("\n")
}

// restoreOnFatal puts the terminal back before log.Fatal exits the process.
type restoreOnFatal struct{}

func (restoreOnFatal) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.FatalLevel {
		restoreTerminal()
	}
}

func saveTerminal() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if state, err := term.GetState(fd); err == nil {
		termState = state
	}
}

func restoreTerminal() {
	if termState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), termState)
	}
}

func initLogger(cmd *cobra.Command) {
	out := &lineWriter{out: os.Stderr}
	useColor := opts.color

	if opts.file != "" {
		// #nosec G304 - User-provided log file path via --logfile flag
		f, err := os.OpenFile(opts.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, format.FileUserReadWrite)
		if err != nil {
			panic(err)
		}
		out = &lineWriter{out: f}

		// files get plain text unless --color was given explicitly
		if !cmd.Root().PersistentFlags().Changed("color") {
			useColor = false
		}
	}

	var w io.Writer = out
	if !opts.json {
		w = zerolog.ConsoleWriter{
			Out:         out,
			TimeFormat:  time.RFC3339,
			NoColor:     !useColor,
			FormatLevel: levelFormatter(useColor),
		}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger().Hook(restoreOnFatal{})
}

func levelFormatter(useColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		level, ok := i.(string)
		if !ok {
			return ""
		}
		if code, colored := levelColors[level]; useColor && colored {
			return code + level + "\x1b[0m"
		}
		return level
	}
}

func applyLogLevel() {
	if opts.level != "" {
		level, ok := explicitLevels[opts.level]
		if !ok {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			log.Warn().Str("logLevelSpecified", opts.level).Msg("Invalid log level, defaulting to info")
			return
		}
		zerolog.SetGlobalLevel(level)
		log.WithLevel(level).Msgf("Log level set to %s (explicit)", level)
		return
	}

	if opts.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Debug().Msg("Log level set to debug (-v)")
		return
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Info().Msg("Log level set to info (default)")
}

// AddCommonFlags adds the logging and proxy flags shared by all commands.
func AddCommonFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.json, "json", "", false, "Use JSON as log output format")
	flags.StringVarP(&opts.file, "logfile", "l", "", "Log output to a file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging (shortcut for --log-level=debug)")
	flags.StringVar(&opts.level, "log-level", "", "Set log level globally (trace, debug, info, warn, error). Example: --log-level=warn")
	flags.BoolVar(&opts.color, "color", true, "Enable colored log output (auto-disabled when using --logfile)")
	flags.BoolVar(&opts.ignoreProxy, "ignore-proxy", false, "Ignore HTTP_PROXY environment variable")
}

// SetupPersistentPreRun configures logging and the http client before any subcommand runs.
func SetupPersistentPreRun(cmd *cobra.Command) {
	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		initLogger(c)
		applyLogLevel()
		httpclient.SetIgnoreProxy(opts.ignoreProxy)
	}
}

// Run executes rootCmd and exits with status 1 on error, restoring the terminal first.
func Run(rootCmd *cobra.Command) {
	saveTerminal()
	defer restoreTerminal()

	if err := rootCmd.Execute(); err != nil {
		restoreTerminal()
		os.Exit(1)
	}
}
