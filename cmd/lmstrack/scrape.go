package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/lmstrack/config"
	"github.com/use-agent/lmstrack/pipeline"
	"github.com/use-agent/lmstrack/publish"
	"github.com/use-agent/lmstrack/scraper"
	"github.com/use-agent/lmstrack/webhook"
)

var scrapeJSON bool

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Print the run summary as JSON.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--json]",
	Short: "Scrapes every course once and appends today's counts to the history file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}

		sc, err := scraper.NewScraper(cfg.Browser, cfg.LMS)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		defer sc.Close()

		runner, notifier := newRunner(cfg, sc)
		sum, runErr := runner.Run(cmd.Context(), pipeline.NewRunID())
		if notifier != nil {
			notifier.Wait()
		}

		if scrapeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				return err
			}
		} else {
			printSummary(sum)
		}
		return runErr
	},
}

// newRunner wires the optional publisher and notifier from cfg. The notifier
// is returned so callers can wait for pending deliveries.
func newRunner(cfg *config.Config, sc *scraper.Scraper) (*pipeline.Runner, *webhook.Notifier) {
	var opts []pipeline.Option
	if cfg.Publish.SFTPHost != "" {
		opts = append(opts, pipeline.WithPublisher(publish.NewUploader(cfg.Publish)))
	}
	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
		opts = append(opts, pipeline.WithNotifier(notifier))
	}
	return pipeline.NewRunner(cfg, connector(sc, cfg.LMS), opts...), notifier
}

func connector(sc *scraper.Scraper, lms config.LMSConfig) pipeline.Connector {
	creds := scraper.Credentials{Username: lms.Username, Password: lms.Password}
	return func(ctx context.Context) (pipeline.Portal, error) {
		sess, err := sc.Connect(ctx, creds)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func printSummary(sum *pipeline.Summary) {
	if sum == nil {
		return
	}
	fmt.Printf("run %s finished in %s\n", sum.RunID, sum.Duration)
	fmt.Printf("  pages:   %d (advances %d, attempts %d, exhausted %t)\n", sum.Pages, sum.Advances, sum.Attempts, sum.Exhausted)
	fmt.Printf("  courses: %d rows, %d ok, %d partial, %d failed\n", sum.Rows, sum.Succeeded, sum.Partial, sum.Failed)
	fmt.Printf("  history: %d courses in %s (%d added)\n", sum.Courses, sum.DataFile, len(sum.Added))
	if sum.Archive != "" {
		fmt.Printf("  archive: %s\n", sum.Archive)
	}
	for _, w := range sum.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if sum.Error != "" {
		fmt.Printf("  error:   %s\n", sum.Error)
	}
}
