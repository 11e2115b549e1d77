// Command sheetq queries and edits header-addressed sheets from the shell.
//
//	sheetq --dir ./data sheets
//	sheetq --dir ./data query people --where '{"age": {"gte": 30}}' --fields name,age
//	sheetq --snapshot book.snap append people '{"name": "Zoe", "age": 30}'
//	sheetq --dir ./data serve
//
// Store selection and limits come from the same environment variables as the
// server; --backend, --dir and --snapshot override them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetq/internal/application"
	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/logging"
)

func main() {
	// .env is optional; explicit environment wins for the CLI.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Getenv, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// run executes one command line. The store is closed (and a memory
// snapshot saved) even when the command fails part way.
func run(ctx context.Context, out io.Writer, getenv func(string) string, args []string) error {
	a := &app{out: out, getenv: getenv}
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// errorText renders err with its support code when it has one.
func errorText(err error) string {
	if !core.IsUserFacing(err) {
		return "error: " + err.Error()
	}
	msg := core.MapError(err)
	if msg.Details != "" {
		return fmt.Sprintf("%s (Code: %s): %s", msg.Message, msg.Code, msg.Details)
	}
	return core.FormatUserError(err)
}

// app is the state shared by every command: flag values and the opened
// backend.
type app struct {
	out    io.Writer
	getenv func(string) string

	backend  string
	dir      string
	snapshot string
	logLevel string

	cfg     *config.Config
	store   *application.Backend
	service *core.Service
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetq",
		Short:         "Query and edit header-addressed sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.backend, "backend", "", "store backend: memory, csv or postgres (default from STORE_BACKEND)")
	flags.StringVar(&a.dir, "dir", "", "csv workbook directory (implies --backend csv)")
	flags.StringVar(&a.snapshot, "snapshot", "", "memory snapshot file (implies --backend memory)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")

	root.AddCommand(
		a.sheetsCmd(),
		a.describeCmd(),
		a.createCmd(),
		a.queryCmd(),
		a.exportCmd(),
		a.insertCmd("append", "Append a record below the last row"),
		a.insertCmd("prepend", "Insert a record as the first data row"),
		a.updateCmd(),
		a.deleteCmd(),
		a.upsertCmd(),
		a.serveCmd(),
	)
	return root
}

// open loads configuration with flag overrides and opens the store.
func (a *app) open(ctx context.Context) error {
	overrides := map[string]string{}
	switch {
	case a.backend != "":
		overrides["STORE_BACKEND"] = a.backend
	case a.dir != "":
		overrides["STORE_BACKEND"] = config.BackendCSV
	case a.snapshot != "":
		overrides["STORE_BACKEND"] = config.BackendMemory
	}
	if a.dir != "" {
		overrides["STORE_DIR"] = a.dir
	}
	if a.snapshot != "" {
		overrides["STORE_SNAPSHOT"] = a.snapshot
	}
	if a.logLevel != "" {
		overrides["LOG_LEVEL"] = a.logLevel
	}

	cfg, err := config.LoadFrom(func(key string) string {
		if v, ok := overrides[key]; ok {
			return v
		}
		return a.getenv(key)
	})
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout stays clean for command output.
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	store, err := application.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.store = store
	a.service = application.NewService(store, cfg)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
