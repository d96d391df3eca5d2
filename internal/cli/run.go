package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/authguard/internal/agent"
	"github.com/ppiankov/authguard/internal/alert"
	"github.com/ppiankov/authguard/internal/audit"
	"github.com/ppiankov/authguard/internal/config"
	"github.com/ppiankov/authguard/internal/ingest"
	"github.com/ppiankov/authguard/internal/metrics"
	"github.com/ppiankov/authguard/internal/model"
	"github.com/ppiankov/authguard/internal/recovery"
	"github.com/ppiankov/authguard/internal/status"
)

var (
	runClientID    string
	runUserID      string
	runEndpoint    string
	runEvents      string
	runAuditLog    string
	runMetricsAddr string
	runStatusAddr  string
	runInterval    time.Duration
	runNoFP        bool
)

func init() {
	runCmd.Flags().StringVar(&runClientID, "client-id", "", "Client API key (overrides config and "+config.EnvClientID+")")
	runCmd.Flags().StringVar(&runUserID, "user-id", "", "User ID (overrides config and "+config.EnvUserID+")")
	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "Decision service base URL")
	runCmd.Flags().StringVar(&runEvents, "events", "-", "Input event source: JSONL file to follow, or - for stdin")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Path to hash-chained audit log")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", "", "Serve gRPC health status on this address")
	runCmd.Flags().DurationVar(&runInterval, "batch-interval", 0, "Telemetry flush period")
	runCmd.Flags().BoolVar(&runNoFP, "no-fingerprint", false, "Do not send the device descriptor")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a monitored session",
	Long: `Starts a session, reads input events, and streams behavioral telemetry
to the decision service every batch interval.

Events are JSON lines, one per input event:
  {"type":"keydown","code":"KeyA","t":1200.5}
  {"type":"pointermove","x":120,"y":48,"t":1250}

When the service locks the session, a banner is shown and the recovery
prompt asks for an email and the one-time code sent to it. With --events -
the prompt reads from the controlling terminal.`,
	RunE: runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Identity().Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	m.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var rec audit.Recorder
	if cfg.AuditLog != "" {
		log, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer log.Close()
		logger.Info("audit log opened", "path", log.Path())
		rec = log
	}

	alerts := alert.NewDispatcher(cfg.Webhooks, logger)
	defer alerts.Wait()

	locked := make(chan string, 1)
	acfg := agent.Config{
		Identity:        cfg.Identity(),
		Endpoint:        cfg.Endpoint,
		BatchInterval:   cfg.BatchInterval,
		FlightCeiling:   cfg.FlightCeiling,
		PointerThrottle: cfg.PointerThrottle,
		RequestTimeout:  cfg.RequestTimeout,
		NoFingerprint:   !cfg.SendFingerprint,
		Descriptor:      cfg.Environment,
		UserAgent:       cfg.UserAgent,
		Overlay:         &terminalOverlay{out: os.Stderr, locked: locked},
		Logger:          logger,
		Metrics:         m,
		Audit:           rec,
		Alerts:          alerts,
		Recovery: recovery.Options{
			Attempts: cfg.Recovery.Attempts,
			Window:   cfg.Recovery.Window,
		},
	}

	var health *status.Server
	if cfg.StatusAddr != "" {
		health = status.New()
		acfg.Status = health
	}

	a, err := agent.New(acfg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	if health != nil {
		go func() {
			if err := health.Serve(cfg.StatusAddr); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
		defer health.GracefulStop()
	}

	prompter, closePrompter := openPrompter(runEvents, logger)
	defer closePrompter()

	handle := func(ev model.InputEvent) { a.HandleEvent(ev) }
	if runEvents == "-" {
		go func() {
			st, err := ingest.Decode(os.Stdin, handle)
			if err != nil {
				logger.Error("reading events failed", "error", err)
			}
			logger.Info("event input closed", "lines", st.Lines, "events", st.Events, "invalid", st.Invalid)
			stop()
		}()
	} else {
		src := ingest.NewFileSource(runEvents, handle, logger)
		go func() {
			if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event source stopped", "error", err)
				stop()
			}
		}()
	}

	s := a.Session()
	fmt.Fprintf(os.Stderr, "authguard session %s started for %s\n", s.SessionID, s.UserID)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for {
		select {
		case err := <-done:
			return err
		case <-locked:
			if prompter == nil {
				logger.Warn("session locked and no terminal is available for recovery")
				continue
			}
			recoverLoop(ctx, a, prompter)
		}
	}
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("client-id") {
		cfg.ClientID = runClientID
	}
	if flags.Changed("user-id") {
		cfg.UserID = runUserID
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = runEndpoint
	}
	if flags.Changed("audit-log") {
		cfg.AuditLog = config.ExpandHome(runAuditLog)
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = runMetricsAddr
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = runStatusAddr
	}
	if flags.Changed("batch-interval") && runInterval > 0 {
		cfg.BatchInterval = runInterval
	}
	if runNoFP {
		cfg.SendFingerprint = false
	}
}

// recoverLoop prompts until the session is unlocked, the user aborts, or
// ctx is cancelled. Rejected codes prompt again.
func recoverLoop(ctx context.Context, a *agent.Agent, p recovery.Prompter) {
	for ctx.Err() == nil && a.State() == model.Locked {
		err := a.Recover(ctx, p)
		var rerr *recovery.RecoveryError
		switch {
		case err == nil:
			return
		case errors.Is(err, recovery.ErrThrottled):
			select {
			case <-ctx.Done():
			case <-time.After(recovery.DefaultWindow / recovery.DefaultAttempts):
			}
		case errors.As(err, &rerr):
		default:
			return
		}
	}
}

// openPrompter returns a prompter on stdin, or on the controlling terminal
// when stdin carries events. A nil prompter means recovery is unavailable.
func openPrompter(events string, logger *slog.Logger) (recovery.Prompter, func()) {
	if events != "-" {
		return newTerminalPrompter(os.Stdin, os.Stderr), func() {}
	}
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		logger.Debug("no controlling terminal", "error", err)
		return nil, func() {}
	}
	return newTerminalPrompter(tty, tty), func() { _ = tty.Close() }
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
