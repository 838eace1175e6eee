package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/summarize"
)

func summarizeCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)

	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize the content behind a URL",
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

			scraper, err := cfg.newFirecrawl()
			if err != nil {
				return err
			}

			agent := summarize.New(gemini, scraper)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = fmt.Sprintf(" summarizing %s...", target)
			sp.Start()
			summary, err := agent.Run(ctx, target)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to summarize url", goerr.V("url", target))
			}

			fmt.Fprintln(c.Root().Writer, summary)
			return nil
		},
	}
}
