// marketdash is a terminal dashboard for market indicators and news
// sentiment served by the marketdash backend API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketdash/internal/config"
	"marketdash/internal/route"
	"marketdash/internal/tui"
	"marketdash/internal/util"
	"marketdash/internal/view"
	"marketdash/pkg/dashapi"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketdash [route]",
	Short: "Market indicator and news sentiment dashboard",
	Long: `marketdash browses market series, technical indicators, daily news
sentiment reports and an interactive sentiment probe.

Routes:
  /                                  market overview
  /market/{ticker}                   price series and overview
  /market/{ticker}/sma|rsi|macd      technical indicator
  /reports                           report browser
  /report/{date}[/positive|negative] single report or its articles
  /sentiment                         sentiment probe`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = os.Getenv(config.EnvConfigPath)
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		if url, _ := cmd.Flags().GetString("api"); url != "" {
			cfg.API.BaseURL = url
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.InitialRoute()
		if len(args) == 1 {
			path = args[0]
		}
		r, err := route.Parse(path)
		if err != nil {
			return err
		}

		logFile, err := util.OpenLogFile(cfg.Logging.File, "marketdash")
		if err != nil {
			return err
		}
		defer logFile.Close()
		logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logFile)
		util.SetDefault(logger)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting dashboard", "version", version, "api", cfg.API.BaseURL, "route", r.String())
		return tui.Run(ctx, newSession(logger), r)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("api", "", "backend API base URL override")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(renderCmd)
}

func newSession(logger *slog.Logger) *tui.Session {
	client := dashapi.NewClient(cfg.API.BaseURL,
		dashapi.WithTimeout(cfg.API.Timeout),
		dashapi.WithRateLimit(cfg.API.RateLimitPerMin),
		dashapi.WithLogger(logger),
	)
	return &tui.Session{API: client, Log: logger, Config: cfg}
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("marketdash %s (%s)\n", version, commit)
	},
}

// --- Render Command ---

var errPageFailed = errors.New("page failed to load")

var renderCmd = &cobra.Command{
	Use:   "render <route>",
	Short: "Resolve one page and print it",
	Long: `Resolve a single route to completion and print the rendered page.

Transient failures (network errors and 5xx responses) are retried with backoff.
The exit status is non-zero when the page ends in an error.

Examples:
  marketdash render /market/BTC-USD
  marketdash render /reports
  marketdash render /sentiment --text "Great earnings beat, stock surges"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := route.Parse(args[0])
		if err != nil {
			return err
		}
		attempts, _ := cmd.Flags().GetInt("attempts")
		text, _ := cmd.Flags().GetString("text")
		width, _ := cmd.Flags().GetInt("width")

		w, closeLog := logWriter()
		defer closeLog()
		logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
		sess := newSession(logger)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		var (
			out string
			st  view.Status
		)
		retryable := func(err error) bool {
			return !errors.Is(err, context.Canceled) && dashapi.IsTemporary(err)
		}
		err = util.RetryIf(ctx, attempts, 500*time.Millisecond, retryable, func() error {
			var rerr error
			out, st, rerr = tui.Resolve(ctx, sess, r, text, width)
			if st == view.Failed || rerr != nil {
				logger.Warn("render attempt failed", "route", r.String(), "error", rerr)
				return rerr
			}
			return nil
		})
		fmt.Fprintln(cmd.OutOrStdout(), out)
		if st == view.Failed {
			return fmt.Errorf("%w: %v", errPageFailed, err)
		}
		return err
	},
}

func init() {
	renderCmd.Flags().Int("attempts", 3, "attempts for transient failures")
	renderCmd.Flags().String("text", "", "text to analyze on the sentiment route (one text per line)")
	renderCmd.Flags().Int("width", 100, "render width in columns")
}

// logWriter sends render logs to the configured file, or stderr so stdout
// carries only the page. The returned func closes the file, if one was
// opened.
func logWriter() (io.Writer, func()) {
	if cfg.Logging.File == "" {
		return os.Stderr, func() {}
	}
	f, err := util.OpenLogFile(cfg.Logging.File, "marketdash")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging to stderr: %v\n", err)
		return os.Stderr, func() {}
	}
	return f, func() { f.Close() }
}
