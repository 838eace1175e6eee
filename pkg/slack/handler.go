package slack

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/hirosat/ermine/pkg/agent/marp"
	"github.com/hirosat/ermine/pkg/agent/memorychat"
	"github.com/hirosat/ermine/pkg/agent/research"
	"github.com/hirosat/ermine/pkg/agent/summarize"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>\s*`)

const helpText = "*Main Features of AI Assistant* :robot_face:\n\n" +
	"*1. Conversation Features*\n" +
	"• Question answering via mentions (e.g. @AI Assistant hello)\n" +
	"• Response generation considering thread conversation history\n" +
	"• Task execution through natural dialogue\n\n" +
	"*2. Commands*\n" +
	"• `hello` - Display greeting and conversation button\n" +
	"• `ai [question]` - Direct questions to AI agent\n" +
	"• `help` - Display this help message\n" +
	"• `/research [topic]` - Write a deep research report\n" +
	"• `/summarize [url]` - Summarize a web page\n" +
	"• `/marp [requirements]` - Generate a Marp slide deck\n\n" +
	"*3. Features*\n" +
	"• Context-aware responses using advanced natural language processing\n" +
	"• Thread-based conversation history management\n" +
	"• Interactive operations via buttons\n" +
	"• Appropriate feedback on error occurrence\n\n" +
	"Please check the App Home for detailed usage instructions :house:"

type slackAPI interface {
	messageAPI
	PostBlocks(channel, threadTS, fallback string, blocks ...slackgo.Block) error
	ThreadMessages(channel, threadTS string) ([]slackgo.Message, error)
	PublishHome(userID string) error
	BotUserID() string
}

// Agents bundles the agent workflows reachable from Slack.
type Agents struct {
	MemoryChat *memorychat.Agent
	Research   *research.Agent
	Summarize  *summarize.Agent
	Marp       *marp.Agent
}

// Handler routes Slack events to agent runs and posts the results back.
type Handler struct {
	api    slackAPI
	agents Agents
}

func NewHandler(api slackAPI, agents Agents) *Handler {
	return &Handler{api: api, agents: agents}
}

// HandleMention answers an app_mention with the memory chat agent,
// streaming the response into a single edited message.
func (h *Handler) HandleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	logger := logging.From(ctx)

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}

	question := strings.TrimSpace(mentionPattern.ReplaceAllString(ev.Text, ""))
	if question == "help" {
		if _, err := h.api.PostMessage(ev.Channel, helpText, threadTS); err != nil {
			logger.Warn("failed to post help message", "error", err)
		}
		return
	}

	var messages []memorychat.Message
	if thread, err := h.api.ThreadMessages(ev.Channel, threadTS); err != nil {
		logger.Warn("failed to get thread messages", "error", err)
	} else {
		messages = buildConversation(thread, h.api.BotUserID())
	}
	if len(messages) == 0 {
		messages = append(messages, memorychat.Message{Role: "user", Content: question})
	}

	streamer := NewStreamer(h.api, ev.Channel, threadTS, ev.User)
	input := &memorychat.Input{
		UserID:   ev.User,
		Messages: messages,
		OnDelta: func(delta string) {
			streamer.Append(ctx, delta)
		},
	}

	if _, err := h.agents.MemoryChat.Run(ctx, input); err != nil {
		logger.Error("memory chat failed", "error", err, "user", ev.User)
		if _, err := h.api.PostMessage(ev.Channel, "エラーが発生しました", threadTS); err != nil {
			logger.Warn("failed to post error message", "error", err)
		}
		return
	}
	streamer.Flush(ctx)
}

// HandleMessage reacts to the "hello" greeting and the "ai" prefix in
// plain channel messages.
func (h *Handler) HandleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	logger := logging.From(ctx)
	text := strings.TrimSpace(ev.Text)
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "hello"):
		block := slackgo.NewSectionBlock(
			slackgo.NewTextBlockObject(slackgo.MarkdownType, fmt.Sprintf("Hey there <@%s>!!!", ev.User), false, false),
			nil,
			slackgo.NewAccessory(slackgo.NewButtonBlockElement(
				"button_click", "",
				slackgo.NewTextBlockObject(slackgo.PlainTextType, "Click Me", false, false),
			)),
		)
		fallback := fmt.Sprintf("Hey there <@%s>!", ev.User)
		if err := h.api.PostBlocks(ev.Channel, ev.ThreadTimeStamp, fallback, block); err != nil {
			logger.Warn("failed to post hello blocks", "error", err)
		}

	case lower == "ai" || strings.HasPrefix(lower, "ai "):
		question := strings.TrimSpace(text[len("ai"):])
		if question == "" {
			if _, err := h.api.PostMessage(ev.Channel, "Please provide a message for the AI agent to process.", ev.ThreadTimeStamp); err != nil {
				logger.Warn("failed to post usage message", "error", err)
			}
			return
		}

		input := &memorychat.Input{
			UserID:   ev.User,
			Messages: []memorychat.Message{{Role: "user", Content: question}},
		}
		answer, err := h.agents.MemoryChat.Run(ctx, input)
		if err != nil {
			logger.Error("ai message failed", "error", err, "user", ev.User)
			msg := fmt.Sprintf("Sorry, I encountered an error while processing your message: %v", err)
			if _, err := h.api.PostMessage(ev.Channel, msg, ev.ThreadTimeStamp); err != nil {
				logger.Warn("failed to post error message", "error", err)
			}
			return
		}
		h.postResult(ctx, ev.Channel, ev.ThreadTimeStamp, "", ToMrkdwn(answer))
	}
}

// HandleInteraction acknowledges button clicks.
func (h *Handler) HandleInteraction(ctx context.Context, cb *slackgo.InteractionCallback) {
	if cb.Type != slackgo.InteractionTypeBlockActions {
		return
	}
	logger := logging.From(ctx)
	for _, action := range cb.ActionCallback.BlockActions {
		if action.ActionID != "button_click" {
			continue
		}
		text := fmt.Sprintf("<@%s> clicked the button", cb.User.ID)
		if _, err := h.api.PostMessage(cb.Channel.ID, text, ""); err != nil {
			logger.Warn("failed to post button response", "error", err)
		}
	}
}

// HandleSlashCommand runs the agent behind a slash command and posts
// the result to the channel the command was invoked in.
func (h *Handler) HandleSlashCommand(ctx context.Context, cmd *slackgo.SlashCommand) {
	logger := logging.From(ctx)
	arg := strings.TrimSpace(cmd.Text)

	post := func(text string) {
		if _, err := h.api.PostMessage(cmd.ChannelID, text, ""); err != nil {
			logger.Warn("failed to post slash command response", "error", err, "command", cmd.Command)
		}
	}

	switch cmd.Command {
	case "/research":
		if arg == "" {
			post("❌ 調査するトピックを指定してください。例: `/research 量子コンピュータの現状`")
			return
		}
		post(fmt.Sprintf("🔍 「%s」について調査しています。しばらくお待ちください...", arg))
		report, err := h.agents.Research.Run(ctx, arg)
		if err != nil {
			logger.Error("research command failed", "error", err, "topic", arg)
			post("❌ レポートの生成中にエラーが発生しました。")
			return
		}
		h.postResult(ctx, cmd.ChannelID, "", fmt.Sprintf("<@%s>", cmd.UserID), ToMrkdwn(report))

	case "/summarize":
		if arg == "" {
			post("❌ 要約するURLを指定してください。例: `/summarize https://example.com/article`")
			return
		}
		post(fmt.Sprintf("📝 %s を要約しています...", arg))
		summary, err := h.agents.Summarize.Run(ctx, arg)
		if err != nil {
			logger.Error("summarize command failed", "error", err, "url", arg)
			post("❌ 要約の生成中にエラーが発生しました。")
			return
		}
		h.postResult(ctx, cmd.ChannelID, "", fmt.Sprintf("<@%s>", cmd.UserID), ToMrkdwn(summary))

	case "/marp":
		if arg == "" {
			post("❌ スライドの要件を指定してください。例: `/marp Goの並行処理入門、10枚構成`")
			return
		}
		post("📊 スライドを生成しています。しばらくお待ちください...")
		deck, err := h.agents.Marp.Run(ctx, arg)
		if err != nil {
			logger.Error("marp command failed", "error", err)
			post("❌ スライドの生成中にエラーが発生しました。")
			return
		}
		if deck.ObjectKey != "" {
			post(fmt.Sprintf("✅ スライド「%s」を生成しました: `%s`", deck.Title, deck.ObjectKey))
			return
		}
		h.postResult(ctx, cmd.ChannelID, "", "", "```\n"+deck.Markdown+"\n```")

	default:
		logger.Info("ignoring unknown slash command", "command", cmd.Command)
	}
}

// HandleHomeOpened refreshes the App Home tab.
func (h *Handler) HandleHomeOpened(ctx context.Context, ev *slackevents.AppHomeOpenedEvent) {
	if err := h.api.PublishHome(ev.User); err != nil {
		logging.From(ctx).Warn("failed to publish home tab", "error", err, "user", ev.User)
	}
}

// postResult posts agent output, splitting into numbered chunks only
// when it exceeds the message limit.
func (h *Handler) postResult(ctx context.Context, channel, threadTS, mention, text string) {
	full := text
	if mention != "" {
		full = mention + "\n" + text
	}
	if utf8.RuneCountInString(full) <= messageCharLimit {
		if _, err := h.api.PostMessage(channel, full, threadTS); err != nil {
			logging.From(ctx).Warn("failed to post result", "error", err)
		}
		return
	}
	postChunks(ctx, h.api, channel, threadTS, mention, text)
}

// buildConversation turns thread messages into conversation turns,
// annotating each with its post time and author.
func buildConversation(thread []slackgo.Message, botUserID string) []memorychat.Message {
	var messages []memorychat.Message
	for _, msg := range thread {
		text := msg.Text
		if len(msg.Blocks.BlockSet) > 0 {
			if extracted := ExtractTextFromBlocks(msg.Blocks); extracted != "" {
				text = extracted
			}
		}

		cleaned := strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
		if cleaned == "" {
			continue
		}

		var postedAt string
		if sec, err := strconv.ParseFloat(msg.Timestamp, 64); err == nil {
			postedAt = time.Unix(int64(sec), 0).Format("2006-01-02 15:04:05")
		}

		if msg.BotID != "" || msg.User == botUserID {
			messages = append(messages, memorychat.Message{
				Role:    "model",
				Content: fmt.Sprintf("[%s] Assistant: %s", postedAt, cleaned),
			})
		} else {
			messages = append(messages, memorychat.Message{
				Role:    "user",
				Content: fmt.Sprintf("[%s] User %s: %s", postedAt, msg.User, cleaned),
			})
		}
	}
	return messages
}
