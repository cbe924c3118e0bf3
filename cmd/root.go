// Package cmd defines and implements the CLI commands for the legislature-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/app"
	"github.com/JakeFAU/legislature-crawler/internal/config"
	"github.com/JakeFAU/legislature-crawler/internal/crawler"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitPartial = 2
)

var cfgFile string

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context) (crawler.Summary, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. Running it without a
// subcommand performs a crawl.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legislature-crawler",
		Short: "Incrementally archives South Dakota legislature records as JSON.",
		Long: `legislature-crawler walks every legislative session exposed by the
South Dakota legislature API and archives sessions, bills, legislators,
committees and historical members as JSON documents. Records of closed
sessions are written once; the current session is refreshed on every run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawlCommand,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars prefixed LEGISLATURE_ override it")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	return execute(context.Background(), os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "legislature-crawler: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, crawler.ErrPartialCrawl):
		return ExitPartial
	default:
		return ExitFailure
	}
}
