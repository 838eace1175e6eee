package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/marp"
)

func marpCommand() *cli.Command {
	var (
		cfg    config
		output string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the deck Markdown to a file instead of stdout",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "marp",
		Usage:     "Generate a Marp slide deck from requirements",
		ArgsUsage: "<requirements>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.configureLogging(ctx)

			requirements := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if requirements == "" {
				return goerr.New("requirements are required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			search, err := cfg.newTavily()
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			agent := marp.New(gemini, search, storage)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " generating slides..."
			sp.Start()
			deck, err := agent.Run(ctx, requirements)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to generate slides")
			}

			if deck.ObjectKey != "" {
				fmt.Fprintf(c.Root().Writer, "Deck %q saved: %s\n", deck.Title, deck.ObjectKey)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(deck.Markdown), 0644); err != nil {
					return goerr.Wrap(err, "failed to write output file", goerr.V("path", output))
				}
				fmt.Fprintf(c.Root().Writer, "Deck written to %s\n", output)
				return nil
			}

			fmt.Fprintln(c.Root().Writer, deck.Markdown)
			return nil
		},
	}
}
