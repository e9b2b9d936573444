package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codelion/codelion/internal/agents"
	"github.com/codelion/codelion/internal/api"
	"github.com/codelion/codelion/internal/daemon"
	"github.com/codelion/codelion/internal/dashboard"
	"github.com/codelion/codelion/internal/demo"
	"github.com/codelion/codelion/internal/metrics"
	"github.com/codelion/codelion/internal/store"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard, JSON API and webhook server",
	Long: `Start the CodeLion HTTP server in the foreground.

It serves the web dashboard at /, the JSON API under /api/v1, the GitHub
webhook endpoint at /api/webhooks/github, /health and /metrics.
SIGINT or SIGTERM (or 'codelion serve stop') shuts it down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "Port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func instance() *daemon.Instance {
	return daemon.NewInstance(filepath.Join(viper.GetString("state_dir"), "serve.json"))
}

// dashboardSource picks the sample data or the live store.
func dashboardSource(s store.Store) dashboard.Source {
	if viper.GetBool("dashboard.demo") {
		return demo.NewSource()
	}
	return dashboard.StoreSource{Store: s}
}

func agentInfos(registry *agents.Registry) []dashboard.AgentInfo {
	var out []dashboard.AgentInfo
	for _, a := range registry.List() {
		out = append(out, dashboard.AgentInfo{Name: a.Name(), Description: a.Description()})
	}
	return out
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	addr := fmt.Sprintf(":%d", viper.GetInt("port"))

	inst := instance()
	if err := inst.Acquire(addr); err != nil {
		return err
	}
	defer func() {
		if err := inst.Release(); err != nil {
			slog.Warn("release instance file", "error", err)
		}
	}()

	s, err := getStore()
	if err != nil {
		return err
	}

	registry := newRegistry(newGenerator(ctx))
	m := metrics.New()
	gh := newGitHubClient()
	svc := newReviewService(s, registry, gh, m)
	exchanger := newExchanger()

	opts := api.Options{
		Store:         s,
		Registry:      registry,
		Reviews:       svc,
		Validator:     newKeyValidator(),
		Metrics:       m,
		WebhookSecret: viper.GetString("github.webhook_secret"),
		BaseURL:       viper.GetString("base_url"),
		Dashboard: dashboard.New(dashboard.Options{
			Source:        dashboardSource(s),
			Exchanger:     exchanger,
			Agents:        agentInfos(registry),
			SecureCookies: strings.HasPrefix(viper.GetString("base_url"), "https://"),
		}),
	}
	if gh != nil {
		opts.GitHub = gh
	}
	if exchanger.Configured() {
		opts.Exchanger = exchanger
	} else {
		ui.Warning("github.client_id not set; GitHub sign-in is disabled")
	}
	if gh == nil {
		ui.Warning("github.token not set; repositories cannot be connected and comments are not posted")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ui.Success("Serving CodeLion at http://localhost%s", addr)
	ui.Info("%d agents registered: %v", registry.Len(), registry.Names())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	ui.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// Let in-flight webhook reviews finish writing their results.
	svc.Wait()
	ui.Success("Server stopped")
	return nil
}

func serveStatusRun() error {
	info, running := instance().Status()
	if !running {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server running (pid %d) on %s, up %s",
		info.PID, info.Addr, time.Since(info.StartedAt).Round(time.Second))
	return nil
}

func serveStopRun() error {
	info, err := instance().Stop(shutdownTimeout + 5*time.Second)
	if errors.Is(err, daemon.ErrNotRunning) {
		return fmt.Errorf("server is not running")
	}
	if err != nil {
		return err
	}
	ui.Success("Stopped server (pid %d)", info.PID)
	return nil
}
