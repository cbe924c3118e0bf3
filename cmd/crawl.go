package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/config"
	"github.com/JakeFAU/legislature-crawler/internal/crawler"
	"github.com/JakeFAU/legislature-crawler/internal/logging"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one incremental crawl pass",
		Long: `Fetches the historical member list, then every session with its
legislators, bills and committees, writing each record to the configured
archive. Exits 2 when the pass finished but some entities were aborted.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	appInstance, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer appInstance.Close()

	summary, err := appInstance.Run(cmd.Context())
	writeSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		if errors.Is(err, crawler.ErrPartialCrawl) {
			return err
		}
		return fmt.Errorf("run crawler: %w", err)
	}

	logger.Info("crawl command finished")
	return nil
}

func writeSummary(w io.Writer, s crawler.Summary) {
	line := func(name string, t crawler.Tally) {
		fmt.Fprintf(w, "  %-12s fetched=%d skipped=%d failed=%d\n", name, t.Fetched, t.Skipped, t.Failed)
	}
	fmt.Fprintf(w, "run %s\n", s.RunID)
	line("sessions", s.Sessions)
	line("legislators", s.Legislators)
	line("bills", s.Bills)
	line("committees", s.Committees)
	if s.HistoricalFailed {
		fmt.Fprintln(w, "  historical   failed")
	} else {
		fmt.Fprintf(w, "  historical   members=%d\n", s.Historical)
	}
	fmt.Fprintf(w, "  unresolved   identities=%d\n", len(s.Unresolved))
	for _, u := range s.Unresolved {
		fmt.Fprintf(w, "    session %d profile %d (%s): %s\n", u.SessionID, u.LegislatorProfileID, u.Name, u.Reason)
	}
}
