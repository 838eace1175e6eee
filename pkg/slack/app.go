package slack

import (
	"context"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/hirosat/ermine/pkg/utils/logging"
)

// App receives Socket Mode events and dispatches them to the handler.
// Each event is processed in its own goroutine so a long agent run does
// not block the event loop.
type App struct {
	svc     *Service
	handler *Handler
}

func NewApp(svc *Service, agents Agents) *App {
	return &App{
		svc:     svc,
		handler: NewHandler(svc, agents),
	}
}

func (a *App) Run(ctx context.Context) error {
	go a.dispatch(ctx)

	logging.From(ctx).Info("connecting to slack", "bot_user_id", a.svc.BotUserID())
	return a.svc.RunSocket(ctx)
}

func (a *App) dispatch(ctx context.Context) {
	logger := logging.From(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case evt := <-a.svc.Events():
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				logger.Debug("connecting to slack")
			case socketmode.EventTypeConnected:
				logger.Info("connected to slack")
			case socketmode.EventTypeConnectionError:
				logger.Warn("slack connection error", "data", evt.Data)

			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					a.svc.Ack(*evt.Request)
				}
				a.dispatchCallback(ctx, apiEvent)

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slackgo.SlashCommand)
				if !ok {
					continue
				}
				if evt.Request != nil {
					a.svc.Ack(*evt.Request)
				}
				go a.handler.HandleSlashCommand(ctx, &cmd)

			case socketmode.EventTypeInteractive:
				cb, ok := evt.Data.(slackgo.InteractionCallback)
				if !ok {
					continue
				}
				if evt.Request != nil {
					a.svc.Ack(*evt.Request)
				}
				go a.handler.HandleInteraction(ctx, &cb)
			}
		}
	}
}

func (a *App) dispatchCallback(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if a.svc.IsBotMention(ev) {
			return
		}
		go a.handler.HandleMention(ctx, ev)

	case *slackevents.MessageEvent:
		if a.svc.IsBotMessage(ev) {
			return
		}
		go a.handler.HandleMessage(ctx, ev)

	case *slackevents.AppHomeOpenedEvent:
		go a.handler.HandleHomeOpened(ctx, ev)
	}
}
