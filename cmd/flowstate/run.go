package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/flowstate/pkg/dispatch"
	"github.com/dmitrymomot/flowstate/pkg/file"
	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <operation> [args...]",
		Short: "Run one operation against a machine with file-backed history",
		Long: `Run loads the machine's history from --dir, applies one operation and
writes the new history back. Operations:

  state | previous | actions | history
  do ACTION [JSON-PAYLOAD]
  next
  can ACTION
  reset

Any operation name of the dispatch router (doAction, nextAction, ...) works
too. Engine rejections exit with their code: 10 invalid action, 20 no next
action, 30 forked next action.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runOnce,
	}
	cmd.Flags().String("dir", "./history", "directory holding one JSON history file per machine")
	cmd.Flags().String("machine", "", "machine name")
	cmd.Flags().Bool("no-timestamps", false, "record history entries without time")
	_ = cmd.MarkFlagRequired("machine")
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	table, err := loadTable(s.Table)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	name, _ := cmd.Flags().GetString("machine")
	noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")

	store, err := file.NewLocalStore(dir)
	if err != nil {
		return err
	}

	res, err := execute(cmd.Context(), store, table, name, args[0], operationArgs(args[0], args[1:]),
		statemachine.WithTimestamps(!noTimestamps),
		statemachine.WithLogger(newLogger(s, cmd.ErrOrStderr())),
	)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}

// newCLIRouter adds short command-line names to the default operations.
func newCLIRouter() *dispatch.Router {
	r := dispatch.NewRouter()
	alias := func(name, target string) {
		r.Register(name, func(ctx context.Context, m *statemachine.Machine, args ...any) (any, error) {
			return r.Call(ctx, m, target, args...)
		})
	}
	alias("state", "currentState")
	alias("previous", "previousState")
	alias("can", "canDoAction")
	return r
}

// operationArgs turns command-line words into router arguments. The optional
// payload of "do" is parsed as JSON and falls back to the raw string.
func operationArgs(op string, words []string) []any {
	out := make([]any, 0, len(words))
	for _, w := range words {
		out = append(out, w)
	}
	if (op == "do" || op == "doAction") && len(words) == 2 {
		var payload any
		if err := json.Unmarshal([]byte(words[1]), &payload); err == nil {
			out[1] = payload
		}
	}
	return out
}

// execute resumes name from store, runs op and persists what it changed:
// new entries are appended, a reset or init replaces the stored history.
func execute(ctx context.Context, store historystore.Store, table *statemachine.Table, name, op string, args []any, opts ...statemachine.Option) (any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("machine name is required")
	}
	router := newCLIRouter()
	resolved, _, ok := router.Resolve(op)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", dispatch.ErrUnknownOperation, op, strings.Join(router.Names(), ", "))
	}

	h, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	opts = append(opts, statemachine.WithName(name))
	if len(h) > 0 {
		opts = append(opts, statemachine.WithHistory(h))
	}
	m, err := statemachine.New(table, opts...)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		if err := store.Append(ctx, name, m.History()...); err != nil {
			return nil, err
		}
	}

	before := len(m.History())
	res, err := router.Call(ctx, m, resolved, args...)
	if err != nil {
		return nil, err
	}

	after := m.History()
	switch {
	case resolved == "reset" || resolved == "initAction":
		err = store.Replace(ctx, name, after)
	case len(after) > before:
		err = store.Append(ctx, name, after[before:]...)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func printResult(w io.Writer, res any) error {
	switch v := res.(type) {
	case nil:
		return nil
	case statemachine.State:
		_, err := fmt.Fprintln(w, v)
		return err
	case bool:
		_, err := fmt.Fprintln(w, v)
		return err
	case []statemachine.Action:
		for _, a := range v {
			if _, err := fmt.Fprintln(w, a); err != nil {
				return err
			}
		}
		return nil
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
