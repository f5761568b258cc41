package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/roSievers/worksheet-elm/internal/config"
	"github.com/roSievers/worksheet-elm/internal/server"
	"github.com/roSievers/worksheet-elm/pkg/logger"
	"github.com/spf13/cobra"
)

// flags override the corresponding configuration keys when set.
type flags struct {
	addr  string
	store string
	db    string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "worksheetd",
		Short: "Exercise and worksheet service",
		Long: `worksheetd stores exercises and sheets and renders sheets to PDF.

Examples:
  # Serve the HTTP API on port 8000 with the JSON file store
  worksheetd serve --addr :8000 --db db.json

  # Render sheet 3 without starting the server
  worksheetd render 3 -o sheet-3.pdf`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.addr, "addr", "", "listen address host:port (overrides SERVER_HOST/SERVER_PORT)")
	root.PersistentFlags().StringVar(&f.store, "store", "", "record store driver: file|mongo|memory (overrides STORE_DRIVER)")
	root.PersistentFlags().StringVar(&f.db, "db", "", "JSON store file for the file driver (overrides STORE_PATH)")

	root.AddCommand(newServeCmd(f), newRenderCmd(f))
	return root
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	if err := f.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (f *flags) apply(cfg *config.Config) error {
	if f.addr != "" {
		host, port, err := net.SplitHostPort(f.addr)
		if err != nil {
			return fmt.Errorf("--addr: %w", err)
		}
		if host == "" {
			host = "0.0.0.0"
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}
	if f.store != "" {
		cfg.Store.Driver = strings.ToLower(strings.TrimSpace(f.store))
	}
	if f.db != "" {
		cfg.Store.Path = f.db
	}
	return nil
}

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(context.Background()); err != nil {
					logger.Warnf("close: %v", err)
				}
			}()

			logger.Infof("config: store=%s redis=%v minio=%v render=%s/%s", cfg.Store.Driver, cfg.Redis.Host != "", app.Objects != nil, cfg.Render.Binary, cfg.Render.Engine)
			return server.Run(ctx, cfg.Server, app.Router())
		},
	}
}

func newRenderCmd(f *flags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render SHEET_ID",
		Short: "Render one sheet to a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("sheet id %q is not an integer", args[0])
			}
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := server.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if out == "" {
				out = fmt.Sprintf("sheet-%d.pdf", id)
			}
			n, err := renderTo(ctx, app, id, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default sheet-<id>.pdf)")
	return cmd
}

func renderTo(ctx context.Context, app *server.App, id int, path string) (int64, error) {
	s, err := app.Service.GetSheet(ctx, id)
	if err != nil {
		return 0, err
	}
	pdf, err := app.Renderer.Render(ctx, s)
	app.Archive.Record(ctx, id, pdf, err)
	if err != nil {
		return 0, err
	}
	defer pdf.Close()

	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, pdf)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
