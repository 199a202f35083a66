package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/flowstate/pkg/api"
	"github.com/dmitrymomot/flowstate/pkg/config"
	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

const serviceName = "flowstate"

// settings are shared by every subcommand and read from FLOWSTATE_* variables.
type settings struct {
	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	Table     string `env:"TABLE"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Finite state machine execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("table", "", "path to the YAML transition table (FLOWSTATE_TABLE)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (FLOWSTATE_LOG_LEVEL)")

	root.AddCommand(newServeCmd(), newRunCmd())
	return root
}

// envPrefix namespaces the service's own variables; backend packages keep
// their REDIS_*, PG_*, MONGODB_*, S3_* and HTTP_* names.
const envPrefix = "FLOWSTATE_"

func loadSettings(cmd *cobra.Command) (settings, error) {
	var s settings
	if err := config.Load(&s, config.WithPrefix(envPrefix)); err != nil {
		return s, err
	}
	s.Table = stringFlag(cmd, "table", s.Table)
	s.LogLevel = stringFlag(cmd, "log-level", s.LogLevel)
	return s, nil
}

// stringFlag returns the flag value when set on the command line and def
// otherwise.
func stringFlag(cmd *cobra.Command, name, def string) string {
	if f := cmd.Flag(name); f != nil && f.Changed {
		return f.Value.String()
	}
	return def
}

func newLogger(s settings, w io.Writer) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(s.Env, serviceName),
		logger.WithOutput(w),
		logger.WithContextExtractors(api.RequestIDExtractor()),
	}
	if s.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(s.LogLevel))
	}
	if s.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(s.LogFormat)))
	}
	return logger.New(opts...)
}

// computedTargets are the handlers a YAML table may reference with "@name".
var computedTargets = statemachine.Handlers{
	// payloadState moves to the state named by the payload: either a plain
	// string or an object with a "state" field. Anything else stays put.
	"payloadState": func(_ context.Context, snap statemachine.Snapshot, payload any) statemachine.State {
		switch p := payload.(type) {
		case string:
			return statemachine.State(p)
		case map[string]any:
			if s, ok := p["state"].(string); ok {
				return statemachine.State(s)
			}
		}
		return snap.Current
	},
}

func loadTable(path string) (*statemachine.Table, error) {
	if path == "" {
		return nil, errors.New("no transition table: set --table or FLOWSTATE_TABLE")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	table, err := statemachine.LoadTable(f, computedTargets)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", path, err)
	}
	return table, nil
}

// exitCode maps engine rejections to their numeric code so scripts can tell
// them apart from other failures.
func exitCode(err error) int {
	if code, ok := statemachine.CodeOf(err); ok {
		return int(code)
	}
	return 1
}
