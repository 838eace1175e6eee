package slack

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

type mockSlackAPI struct {
	mockMessageAPI
	blocks    []string
	thread    []slackgo.Message
	homeUsers []string
}

func (m *mockSlackAPI) PostBlocks(channel, threadTS, fallback string, blocks ...slackgo.Block) error {
	m.blocks = append(m.blocks, fallback)
	return nil
}

func (m *mockSlackAPI) ThreadMessages(channel, threadTS string) ([]slackgo.Message, error) {
	return m.thread, nil
}

func (m *mockSlackAPI) PublishHome(userID string) error {
	m.homeUsers = append(m.homeUsers, userID)
	return nil
}

func (m *mockSlackAPI) BotUserID() string {
	return "UBOT"
}

func TestHandleMentionHelp(t *testing.T) {
	api := &mockSlackAPI{}
	h := NewHandler(api, Agents{})

	h.HandleMention(context.Background(), &slackevents.AppMentionEvent{
		Channel:   "C1",
		User:      "U1",
		Text:      "<@UBOT> help",
		TimeStamp: "1700000000.000100",
	})

	gt.A(t, api.posted).Length(1)
	gt.S(t, api.posted[0]).Contains("Main Features of AI Assistant")
}

func TestHandleMessageHello(t *testing.T) {
	api := &mockSlackAPI{}
	h := NewHandler(api, Agents{})

	h.HandleMessage(context.Background(), &slackevents.MessageEvent{
		Channel: "C1",
		User:    "U1",
		Text:    "hello",
	})

	gt.A(t, api.blocks).Length(1)
	gt.S(t, api.blocks[0]).Contains("<@U1>")
}

func TestHandleMessageAIWithoutQuestion(t *testing.T) {
	api := &mockSlackAPI{}
	h := NewHandler(api, Agents{})

	h.HandleMessage(context.Background(), &slackevents.MessageEvent{
		Channel: "C1",
		User:    "U1",
		Text:    "ai",
	})

	gt.A(t, api.posted).Length(1)
	gt.S(t, api.posted[0]).Contains("Please provide a message")
}

func TestHandleInteractionButtonClick(t *testing.T) {
	api := &mockSlackAPI{}
	h := NewHandler(api, Agents{})

	h.HandleInteraction(context.Background(), &slackgo.InteractionCallback{
		Type: slackgo.InteractionTypeBlockActions,
		User: slackgo.User{ID: "U9"},
		Channel: slackgo.Channel{
			GroupConversation: slackgo.GroupConversation{
				Conversation: slackgo.Conversation{ID: "C1"},
			},
		},
		ActionCallback: slackgo.ActionCallbacks{
			BlockActions: []*slackgo.BlockAction{{ActionID: "button_click"}},
		},
	})

	gt.A(t, api.posted).Length(1)
	gt.V(t, api.posted[0]).Equal("<@U9> clicked the button")
}

func TestHandleHomeOpened(t *testing.T) {
	api := &mockSlackAPI{}
	h := NewHandler(api, Agents{})

	h.HandleHomeOpened(context.Background(), &slackevents.AppHomeOpenedEvent{User: "U1"})

	gt.A(t, api.homeUsers).Length(1)
	gt.V(t, api.homeUsers[0]).Equal("U1")
}

func TestBuildConversation(t *testing.T) {
	thread := []slackgo.Message{
		{Msg: slackgo.Msg{User: "U2", Text: "<@UBOT> what is ermine?", Timestamp: "1700000000.000100"}},
		{Msg: slackgo.Msg{BotID: "B1", Text: "An ermine is a stoat.", Timestamp: "1700000010.000100"}},
		{Msg: slackgo.Msg{User: "U2", Text: "   ", Timestamp: "1700000020.000100"}},
	}

	messages := buildConversation(thread, "UBOT")

	gt.A(t, messages).Length(2)
	gt.V(t, messages[0].Role).Equal("user")
	gt.S(t, messages[0].Content).Contains("User U2: what is ermine?")
	gt.V(t, messages[1].Role).Equal("model")
	gt.S(t, messages[1].Content).Contains("Assistant: An ermine is a stoat.")
}

func TestBuildConversationPrefersBlocks(t *testing.T) {
	blocks := slackgo.Blocks{BlockSet: []slackgo.Block{
		slackgo.NewRichTextBlock("b1",
			slackgo.NewRichTextSection(
				slackgo.NewRichTextSectionTextElement("from blocks", nil),
			),
		),
	}}
	thread := []slackgo.Message{
		{Msg: slackgo.Msg{User: "U2", Text: "ignored", Timestamp: "1700000000.000100", Blocks: blocks}},
	}

	messages := buildConversation(thread, "UBOT")

	gt.A(t, messages).Length(1)
	gt.S(t, messages[0].Content).Contains("from blocks")
}
