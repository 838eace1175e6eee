package slack

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hirosat/ermine/pkg/utils/logging"
)

const updateInterval = 300 * time.Millisecond

type messageAPI interface {
	PostMessage(channel, text, threadTS string) (string, error)
	UpdateMessage(channel, ts, text string) error
}

// Streamer turns a token stream into a single Slack message that is edited
// in place. The first token posts the message, later tokens edit it at most
// once per updateInterval, and Flush writes whatever is still pending.
// Responses that outgrow the message limit are reposted as numbered chunks.
type Streamer struct {
	api      messageAPI
	channel  string
	threadTS string
	mention  string

	ts       string
	raw      strings.Builder
	lastText string
	lastEdit time.Time
	tooLong  bool
}

func NewStreamer(api messageAPI, channel, threadTS, userID string) *Streamer {
	s := &Streamer{
		api:      api,
		channel:  channel,
		threadTS: threadTS,
	}
	if userID != "" {
		s.mention = fmt.Sprintf("<@%s>", userID)
	}
	return s
}

func (s *Streamer) Append(ctx context.Context, delta string) {
	s.raw.WriteString(delta)
	if s.tooLong {
		return
	}

	text := s.display()
	if utf8.RuneCountInString(text) > messageCharLimit {
		s.tooLong = true
		return
	}

	logger := logging.From(ctx)
	if s.ts == "" {
		ts, err := s.api.PostMessage(s.channel, text, s.threadTS)
		if err != nil {
			logger.Warn("failed to post streamed message", "error", err)
			return
		}
		s.ts = ts
		s.lastText = text
		s.lastEdit = time.Now()
		return
	}

	if time.Since(s.lastEdit) < updateInterval {
		return
	}
	if err := s.api.UpdateMessage(s.channel, s.ts, text); err != nil {
		logger.Warn("failed to update streamed message", "error", err)
		return
	}
	s.lastText = text
	s.lastEdit = time.Now()
}

// Flush writes the final content. Call it once after the stream ends.
func (s *Streamer) Flush(ctx context.Context) {
	if s.raw.Len() == 0 {
		return
	}

	logger := logging.From(ctx)
	text := s.display()

	if s.tooLong {
		if s.ts != "" {
			placeholder := "長文のため分割して投稿します..."
			if s.mention != "" {
				placeholder = s.mention + "\n" + placeholder
			}
			if err := s.api.UpdateMessage(s.channel, s.ts, placeholder); err != nil {
				logger.Warn("failed to update message to placeholder", "error", err)
			}
		}
		postChunks(ctx, s.api, s.channel, s.threadTS, s.mention, ToMrkdwn(s.raw.String()))
		return
	}

	if s.ts == "" {
		if _, err := s.api.PostMessage(s.channel, text, s.threadTS); err != nil {
			logger.Warn("failed to post final message", "error", err)
		}
		return
	}
	if text != s.lastText {
		if err := s.api.UpdateMessage(s.channel, s.ts, text); err != nil {
			logger.Warn("failed to flush final message", "error", err)
		}
	}
}

func (s *Streamer) display() string {
	text := ToMrkdwn(s.raw.String())
	if s.mention != "" {
		text = s.mention + "\n" + text
	}
	return text
}

// postChunks splits a long message and posts the chunks with progress
// indicators. The mention, if any, goes on the first chunk only.
func postChunks(ctx context.Context, api messageAPI, channel, threadTS, mention, message string) {
	// Leave room for the "(1/10) " style prefix.
	chunks := SplitMessage(message, messageCharLimit-10)
	logger := logging.From(ctx)

	for i, chunk := range chunks {
		text := fmt.Sprintf("(%d/%d) %s", i+1, len(chunks), chunk)
		if i == 0 && mention != "" {
			text = mention + "\n" + text
		}
		if _, err := api.PostMessage(channel, text, threadTS); err != nil {
			logger.Warn("failed to post message chunk", "error", err, "chunk", i+1)
		}
	}
}
