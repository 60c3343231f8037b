package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/astral/internal/scanner"
	"github.com/conneroisu/astral/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server",
	Long: `Serve the project's pages, rendering each request on demand.

Every request recompiles what changed since the last one, so edits show up
on reload.

Examples:
  astral serve
  astral serve --port 4000 --host 0.0.0.0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pr, err := ws.startRuntime(ctx)
	if err != nil {
		return err
	}
	defer pr.Close()

	// Browser builds are cached until a source changes.
	fw, err := watchSources(ctx, ws, ws.scanner(), func(ctx context.Context, _ []scanner.Source) error {
		pr.assets.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	defer fw.Stop()

	srv := server.New(cfg, pr.loader, logger)
	color.New(color.FgGreen, color.Bold).Fprintf(cmd.ErrOrStderr(), "astral listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return srv.Start(ctx)
}
