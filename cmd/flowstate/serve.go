package main

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/flowstate/pkg/api"
	"github.com/dmitrymomot/flowstate/pkg/config"
	"github.com/dmitrymomot/flowstate/pkg/httpserver"
	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/metrics"
	"github.com/dmitrymomot/flowstate/pkg/registry"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

type serveConfig struct {
	Store        string `env:"STORE" envDefault:"memory"`
	Dir          string `env:"DIR" envDefault:"./history"`
	Capacity     int    `env:"CAPACITY" envDefault:"1024"`
	Timestamps   bool   `env:"TIMESTAMPS" envDefault:"true"`
	MachineLabel bool   `env:"METRICS_MACHINE_LABEL" envDefault:"false"`
	MaxPayload   int64  `env:"MAX_PAYLOAD" envDefault:"1048576"`
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve machines of one transition table over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("store", "", "history store: memory, file, redis, postgres, mongo or s3 (FLOWSTATE_STORE)")
	cmd.Flags().String("dir", "", "history directory for the file store (FLOWSTATE_DIR)")
	cmd.Flags().String("addr", "", "listen address (HTTP_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	var cfg serveConfig
	if err := config.Load(&cfg, config.WithPrefix(envPrefix)); err != nil {
		return err
	}
	cfg.Store = stringFlag(cmd, "store", cfg.Store)
	cfg.Dir = stringFlag(cmd, "dir", cfg.Dir)

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	httpCfg.Addr = stringFlag(cmd, "addr", httpCfg.Addr)

	log := newLogger(s, cmd.ErrOrStderr())
	logger.SetAsDefault(log)

	table, err := loadTable(s.Table)
	if err != nil {
		return err
	}

	b, err := openStore(ctx, cfg.Store, cfg.Dir, nil, log)
	if err != nil {
		return err
	}
	defer b.close()

	workflow := strings.TrimSuffix(filepath.Base(s.Table), filepath.Ext(s.Table))
	handler := buildHandler(cfg, httpCfg, workflow, table, b, log)

	log.InfoContext(ctx, "starting flowstate",
		logger.Store(b.name),
		slog.String("table", s.Table),
		slog.Int("states", len(table.States())),
	)
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, handler)
}

// buildHandler wires registry, metrics and API around an opened store.
// Unless per-machine labels are enabled, metrics are labelled with workflow.
func buildHandler(cfg serveConfig, httpCfg httpserver.Config, workflow string, table *statemachine.Table, b *backend, log *slog.Logger) http.Handler {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var metricOpts []metrics.Option
	if !cfg.MachineLabel {
		metricOpts = append(metricOpts, metrics.WithMachineLabel(func(string) string { return workflow }))
	}
	collector := metrics.NewCollector(promReg, metricOpts...)

	reg := registry.New(
		registry.StaticFactory(table),
		b.store,
		registry.WithCapacity(cfg.Capacity),
		registry.WithLogger(log),
		registry.WithMachineOptions(
			statemachine.WithTimestamps(cfg.Timestamps),
			statemachine.WithLogger(log),
			statemachine.WithObserver(collector.Observer()),
		),
	)

	return api.New(reg,
		api.WithLogger(log),
		api.WithMaxPayload(cfg.MaxPayload),
		api.WithHealthTimeout(httpCfg.HealthTimeout),
		api.WithReadinessCheck(b.name, b.check),
		api.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg})),
	)
}
