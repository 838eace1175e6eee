package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hirosat/ermine/pkg/agent/memorychat"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID that owns the stored memories",
			Value:       "local",
			Sources:     cli.EnvVars("ERMINE_CHAT_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session with long-term memory recall",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.configureLogging(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			agent := memorychat.New(gemini, repo)

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to open prompt")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintln(w, "Chat session started. Type 'exit' to quit.")

			var messages []memorychat.Message
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				messages = append(messages, memorychat.Message{Role: "user", Content: message})

				answer, err := agent.Run(ctx, &memorychat.Input{
					UserID:   userID,
					Messages: messages,
					OnDelta: func(delta string) {
						fmt.Fprint(w, delta)
					},
				})
				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}
				fmt.Fprintln(w)

				messages = append(messages, memorychat.Message{Role: "model", Content: answer})
			}

			fmt.Fprintln(w, "\nChat session completed")
			return nil
		},
	}
}
