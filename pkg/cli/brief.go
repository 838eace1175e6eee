package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/brief"
)

func briefCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)

	return &cli.Command{
		Name:      "brief",
		Usage:     "Generate a smart brief for a URL",
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

			agent := brief.New(gemini, search, scraper)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = fmt.Sprintf(" briefing %s...", target)
			sp.Start()
			smartBrief, err := agent.Run(ctx, target)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to generate brief", goerr.V("url", target))
			}

			encoded, err := json.MarshalIndent(smartBrief, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to encode brief")
			}

			fmt.Fprintln(c.Root().Writer, string(encoded))
			return nil
		},
	}
}
