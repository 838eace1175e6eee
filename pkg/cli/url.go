package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/urlresearch"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

func urlCommand() *cli.Command {
	var (
		cfg    config
		output string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the report JSON to a file instead of stdout",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, researchFlags(&cfg)...)

	return &cli.Command{
		Name:      "url",
		Usage:     "Research the content behind a URL and compile a structured report",
		ArgsUsage: "<url>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.configureLogging(ctx)

			target := c.Args().First()
			if target == "" {
				return goerr.New("url is required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			search, err := cfg.newTavily()
			if err != nil {
				return err
			}

			scraper, err := cfg.newFirecrawl()
			if err != nil {
				return err
			}

			agent := urlresearch.New(gemini, search, scraper)
			agent.MaxSearchDepth = int(cfg.maxSearchDepth)
			agent.NumberOfQueries = int(cfg.numberOfQueries)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = fmt.Sprintf(" researching %s...", target)
			sp.Start()
			report, err := agent.Run(ctx, target)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to research url", goerr.V("url", target))
			}

			// Persist only when a repository project is configured.
			if cfg.project != "" {
				repo, err := cfg.newRepository(ctx)
				if err != nil {
					return err
				}
				defer repo.Close()

				if err := repo.PutReport(ctx, report); err != nil {
					logging.From(ctx).Warn("failed to save report", "error", err)
				} else {
					fmt.Fprintf(c.Root().Writer, "Report saved: %s\n", report.ID)
				}
			}

			encoded, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to encode report")
			}

			if output != "" {
				if err := os.WriteFile(output, encoded, 0644); err != nil {
					return goerr.Wrap(err, "failed to write output file", goerr.V("path", output))
				}
				fmt.Fprintf(c.Root().Writer, "Report written to %s\n", output)
				return nil
			}

			fmt.Fprintln(c.Root().Writer, string(encoded))
			return nil
		},
	}
}
