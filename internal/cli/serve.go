package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/mtrack/internal/adapters/notify"
	"github.com/emiliopalmerini/mtrack/internal/scheduler"
	"github.com/emiliopalmerini/mtrack/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	Long: `Run the mtrack daemon: the local HTTP API, the daily report scheduler,
the retention pruner and the settings file watcher.

The API binds to 127.0.0.1 only.

Examples:
  mtrack serve              # Port from the api_port setting (default 7890)
  mtrack serve --port 3000  # Override the port for this run`,
	RunE: runServe,
}

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default: api_port setting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := servePort
	if port == 0 {
		port = app.Settings.Current().Settings.APIPort
	}

	sched := scheduler.New(app.Generator, app.Repos.Schedule, app.Settings, app.Location, app.Log,
		scheduler.WithNotifier(notify.NewLogNotifier(app.Log)),
		scheduler.WithMetrics(app.Metrics),
	)
	if err := sched.Load(ctx); err != nil {
		return fmt.Errorf("failed to load schedule state: %w", err)
	}

	server := web.NewServer(app.Service(sched), app.Prometheus.Handler(), port, app.Log,
		web.WithShutdownTimeout(app.Env.ShutdownTimeout))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		return sched.Run(ctx)
	})
	g.Go(func() error {
		return app.Activities.RunRetention(ctx, app.Env.PruneInterval, func() int {
			return app.Settings.Current().Settings.RetentionDays
		})
	})
	g.Go(func() error {
		return app.Settings.Watch(ctx, app.Env.ConfigPoll)
	})

	app.Log.Info("mtrack started",
		"db", app.Env.DBPath,
		"config", app.Settings.Path(),
		"timezone", app.Location.String(),
		"port", port)

	err := g.Wait()
	app.Log.Info("mtrack stopped")
	return err
}
