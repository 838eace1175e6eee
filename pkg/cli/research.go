package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/research"
	"github.com/hirosat/ermine/pkg/model"
)

func researchCommand() *cli.Command {
	var (
		cfg         config
		interactive bool
		output      string
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "interactive",
			Aliases:     []string{"i"},
			Usage:       "Review the report plan before research starts",
			Destination: &interactive,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the report to a file instead of stdout",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)
	flags = append(flags, researchFlags(&cfg)...)

	return &cli.Command{
		Name:      "research",
		Usage:     "Write a deep research report on a topic",
		ArgsUsage: "<topic>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.configureLogging(ctx)

			topic := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if topic == "" {
				return goerr.New("topic is required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			search, err := cfg.newTavily()
			if err != nil {
				return err
			}

			agent := research.New(gemini, search)
			agent.MaxSearchDepth = int(cfg.maxSearchDepth)
			agent.NumberOfQueries = int(cfg.numberOfQueries)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = fmt.Sprintf(" researching %q...", topic)

			if interactive {
				agent.PlanReviewer = planReviewer(c.Root().Writer, sp)
			}

			sp.Start()
			report, err := agent.Run(ctx, topic)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to write report", goerr.V("topic", topic))
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(report), 0644); err != nil {
					return goerr.Wrap(err, "failed to write output file", goerr.V("path", output))
				}
				fmt.Fprintf(c.Root().Writer, "Report written to %s\n", output)
				return nil
			}

			fmt.Fprintln(c.Root().Writer, report)
			return nil
		},
	}
}

// planReviewer prompts for approval of the report plan. Any input other
// than y/yes is treated as feedback for regenerating the plan.
func planReviewer(w io.Writer, sp *spinner.Spinner) research.PlanReviewer {
	return func(sections []model.Section) (bool, string, error) {
		sp.Stop()
		defer sp.Start()

		fmt.Fprintln(w, research.FormatPlan(sections))

		rl, err := readline.New("Approve this plan? [y/feedback] > ")
		if err != nil {
			return false, "", goerr.Wrap(err, "failed to open prompt")
		}
		defer rl.Close()

		line, err := rl.Readline()
		if err != nil {
			return false, "", goerr.Wrap(err, "failed to read plan feedback")
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
			return true, "", nil
		}
		return false, line, nil
	}
}
