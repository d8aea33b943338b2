package serve

import (
	"context"
	"os"

	"github.com/CompassSecurity/scanview/pkg/config"
	"github.com/CompassSecurity/scanview/pkg/logging"
	"github.com/CompassSecurity/scanview/pkg/report"
	"github.com/CompassSecurity/scanview/pkg/result"
	"github.com/CompassSecurity/scanview/pkg/server"
	"github.com/CompassSecurity/scanview/pkg/system"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type ServeCommandOptions struct {
	ConfigFile    string
	Addr          string
	Results       string
	MaxSize       string
	ShowClosed    bool
	MinConfidence string
}

func NewServeCmd() *cobra.Command {
	options := ServeCommandOptions{}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a results file as a filterable HTML page",
		Long: `Serve renders the results file as an HTML page. Every request is filtered on the server
using the showClosed and minConfidence query parameters, falling back to the configured defaults.

Settings are read from flags, SCANVIEW_ environment variables and .scanview.yaml (current directory
or ~/.config/scanview), in that order of precedence.

While running in a terminal press s for a status line, or t/d/i/w/e to change the log level.`,
		Example: `
scanview serve --results scan.json
scanview serve --results scan.yaml --addr 127.0.0.1:9000 --min-confidence medium
SCANVIEW_SHOW_CLOSED=true scanview serve --config ./scanview.yaml
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServe(cmd, options.ConfigFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stop := system.RegisterGracefulShutdownHandler(system.ShutdownHandler(cancel))
			defer stop()

			return Serve(ctx, cfg, term.IsTerminal(int(os.Stdin.Fd())))
		},
	}

	serveCmd.Flags().StringVarP(&options.ConfigFile, "config", "", "", "Config file (default is .scanview.yaml)")
	serveCmd.Flags().StringVarP(&options.Addr, "addr", "", ":8080", "Listen address")
	serveCmd.Flags().StringVarP(&options.Results, "results", "r", "", "Results file (.json, .yaml or .yml)")
	serveCmd.Flags().StringVarP(&options.MaxSize, "max-size", "", "50MB", "Maximum results file size, e.g. 500KB, 10MB")
	serveCmd.Flags().BoolVarP(&options.ShowClosed, "show-closed", "", false, "Show CLOSED results by default")
	serveCmd.Flags().StringVarP(&options.MinConfidence, "min-confidence", "c", "all", "Default minimum confidence: all, high, medium")

	return serveCmd
}

// Serve loads the results and serves them until ctx is canceled.
func Serve(ctx context.Context, cfg *config.ServeConfig, interactive bool) error {
	if cfg.ConfigFile != "" {
		log.Debug().Str("file", cfg.ConfigFile).Msg("Using config file")
	}

	view, err := cfg.ViewOptions()
	if err != nil {
		return err
	}

	rep, err := result.Load(cfg.Results, view.MaxResultsSize)
	if err != nil {
		return err
	}
	log.Info().Str("target", rep.Target).Str("report", rep.ID).Int("results", len(rep.Results)).Msg("Loaded results")

	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	defaults := view.FilterConfig()
	handler := server.NewHandler(renderer, rep, defaults)

	if interactive {
		go logging.ShortcutListeners(statusHook(handler, cfg.Addr))
	}

	opts := server.Options{
		Addr:         cfg.Addr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return server.Run(ctx, opts, handler.Routes())
}

func statusHook(handler *server.Handler, addr string) logging.ShortcutStatusFN {
	return func() *zerolog.Event {
		return log.Info().Str("addr", addr).Int64("served", handler.Served())
	}
}
