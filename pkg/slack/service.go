package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Service wraps the Slack Web API and a Socket Mode connection.
type Service struct {
	client    *slackgo.Client
	socket    *socketmode.Client
	botUserID string
}

func New(botToken, appToken string) (*Service, error) {
	api := slackgo.New(
		botToken,
		slackgo.OptionAppLevelToken(appToken),
	)
	socket := socketmode.New(api)

	auth, err := api.AuthTest()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to verify slack credentials")
	}

	return &Service{
		client:    api,
		socket:    socket,
		botUserID: auth.UserID,
	}, nil
}

func (s *Service) RunSocket(ctx context.Context) error {
	return s.socket.RunContext(ctx)
}

func (s *Service) Events() <-chan socketmode.Event {
	return s.socket.Events
}

func (s *Service) Ack(req socketmode.Request) {
	s.socket.Ack(req)
}

func (s *Service) BotUserID() string {
	return s.botUserID
}

func (s *Service) IsBotMessage(ev *slackevents.MessageEvent) bool {
	return ev.User == s.botUserID || ev.BotID != ""
}

func (s *Service) IsBotMention(ev *slackevents.AppMentionEvent) bool {
	return ev.User == s.botUserID || ev.BotID != ""
}

// PostMessage sends a message and returns its timestamp for later edits.
func (s *Service) PostMessage(channel, text, threadTS string) (string, error) {
	options := []slackgo.MsgOption{
		slackgo.MsgOptionText(text, false),
	}
	if threadTS != "" {
		options = append(options, slackgo.MsgOptionTS(threadTS))
	}

	_, ts, err := s.client.PostMessage(channel, options...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to post message", goerr.V("channel", channel))
	}
	return ts, nil
}

func (s *Service) PostBlocks(channel, threadTS, fallback string, blocks ...slackgo.Block) error {
	options := []slackgo.MsgOption{
		slackgo.MsgOptionBlocks(blocks...),
		slackgo.MsgOptionText(fallback, false),
	}
	if threadTS != "" {
		options = append(options, slackgo.MsgOptionTS(threadTS))
	}

	if _, _, err := s.client.PostMessage(channel, options...); err != nil {
		return goerr.Wrap(err, "failed to post blocks", goerr.V("channel", channel))
	}
	return nil
}

func (s *Service) UpdateMessage(channel, ts, text string) error {
	if _, _, _, err := s.client.UpdateMessage(channel, ts, slackgo.MsgOptionText(text, false)); err != nil {
		return goerr.Wrap(err, "failed to update message",
			goerr.V("channel", channel), goerr.V("ts", ts))
	}
	return nil
}

func (s *Service) ThreadMessages(channel, threadTS string) ([]slackgo.Message, error) {
	messages, _, _, err := s.client.GetConversationReplies(&slackgo.GetConversationRepliesParameters{
		ChannelID: channel,
		Timestamp: threadTS,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get thread messages",
			goerr.V("channel", channel), goerr.V("thread_ts", threadTS))
	}
	return messages, nil
}

// PublishHome renders the App Home tab for a user.
func (s *Service) PublishHome(userID string) error {
	mrkdwn := func(text string) *slackgo.SectionBlock {
		return slackgo.NewSectionBlock(
			slackgo.NewTextBlockObject(slackgo.MarkdownType, text, false, false), nil, nil,
		)
	}

	blocks := []slackgo.Block{
		slackgo.NewHeaderBlock(
			slackgo.NewTextBlockObject(slackgo.PlainTextType, "Welcome to AI Assistant! :wave:", true, false),
		),
		slackgo.NewDividerBlock(),
		mrkdwn("*About this AI Assistant*\n\nProvides contextually appropriate responses through advanced natural language processing that considers conversation history. Also supports improving work efficiency through automation of routine tasks and support for non-routine tasks."),
		slackgo.NewDividerBlock(),
		mrkdwn("*Main Features*\n\n:speech_balloon: *Conversation Features*\n• Ask questions by mentioning (e.g., @AI Assistant hello)\n• Responses that consider thread conversation history\n• Task execution through natural dialogue\n\n:gear: *Work Automation*\n• Deep research reports via /research\n• URL summarization via /summarize\n• Slide deck generation via /marp"),
		slackgo.NewDividerBlock(),
		mrkdwn("*Available Commands*\n\n• `help` - Basic usage explanation\n• `ai [question]` - Direct questions to AI\n• `hello` - Greeting and simple conversation"),
		mrkdwn("*Best Practices*\n\n1. Be specific with questions: For more accurate answers\n2. Use threads: Maintain context by grouping related conversations\n3. Feedback: Add details as needed for better responses"),
		slackgo.NewDividerBlock(),
		slackgo.NewContextBlock("",
			slackgo.NewTextBlockObject(slackgo.MarkdownType, "Try the `help` command for detailed usage instructions :sparkles: Feel free to mention me if you need support", false, false),
		),
	}

	view := slackgo.HomeTabViewRequest{
		Type:   slackgo.VTHomeTab,
		Blocks: slackgo.Blocks{BlockSet: blocks},
	}
	if _, err := s.client.PublishView(userID, view, ""); err != nil {
		return goerr.Wrap(err, "failed to publish home view", goerr.V("user", userID))
	}
	return nil
}
