package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/astral/internal/build"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Export the site as static files",
	Long: `Render every page into the dist directory.

Collection pages are followed through all of their pages. Scripts, styles
and images the pages reference are written next to them, the public
directory is copied over, and when runtime.site is set RSS feeds and a
sitemap are generated.

Examples:
  astral build
  astral build --site https://example.com --dist public_html`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("site", "", "Public origin used for feeds and the sitemap")
	buildCmd.Flags().String("dist", "dist", "Output directory relative to the project root")

	viper.BindPFlag("runtime.site", buildCmd.Flags().Lookup("site"))
	viper.BindPFlag("project.dist", buildCmd.Flags().Lookup("dist"))
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()
	pr, err := ws.startRuntime(ctx)
	if err != nil {
		return err
	}
	defer pr.Close()

	exporter := build.NewExporter(pr.loader, build.ExportOptions{
		PagesDir:  cfg.PagesDir(),
		PublicDir: cfg.PublicDir(),
		DistDir:   cfg.DistDir(),
		Site:      cfg.Runtime.Site,
		Workers:   cfg.Workers(),
	}, logger)

	res, err := exporter.Export(ctx)
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(cmd.ErrOrStderr(), "Build failed")
		return err
	}
	ws.logStats(ctx)

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.ErrOrStderr(), "Built %d pages", len(res.Pages))
	fmt.Fprintf(cmd.ErrOrStderr(), " (%d files) to %s in %s\n", res.Files, cfg.DistDir(), res.Duration.Round(time.Millisecond))
	return nil
}
