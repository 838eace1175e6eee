package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/marp"
	"github.com/hirosat/ermine/pkg/agent/memorychat"
	"github.com/hirosat/ermine/pkg/agent/research"
	"github.com/hirosat/ermine/pkg/agent/summarize"
	"github.com/hirosat/ermine/pkg/slack"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

func serveCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, slackFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, researchFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the Slack bot over Socket Mode",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.configureLogging(ctx)

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

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			svc, err := cfg.newSlack()
			if err != nil {
				return err
			}

			researchAgent := research.New(gemini, search)
			researchAgent.MaxSearchDepth = int(cfg.maxSearchDepth)
			researchAgent.NumberOfQueries = int(cfg.numberOfQueries)

			app := slack.NewApp(svc, slack.Agents{
				MemoryChat: memorychat.New(gemini, repo),
				Research:   researchAgent,
				Summarize:  summarize.New(gemini, scraper),
				Marp:       marp.New(gemini, search, storage),
			})

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logging.From(ctx).Info("starting slack bot")
			return app.Run(ctx)
		},
	}
}
