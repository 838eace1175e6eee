package slack

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

type mockMessageAPI struct {
	posted  []string
	updated []string
}

func (m *mockMessageAPI) PostMessage(channel, text, threadTS string) (string, error) {
	m.posted = append(m.posted, text)
	return "1700000000.000100", nil
}

func (m *mockMessageAPI) UpdateMessage(channel, ts, text string) error {
	m.updated = append(m.updated, text)
	return nil
}

func TestStreamerFirstTokenPosts(t *testing.T) {
	ctx := context.Background()
	api := &mockMessageAPI{}
	s := NewStreamer(api, "C1", "100.200", "U1")

	s.Append(ctx, "Hello")

	gt.A(t, api.posted).Length(1)
	gt.V(t, api.posted[0]).Equal("<@U1>\nHello")
	gt.A(t, api.updated).Length(0)
}

func TestStreamerThrottlesEdits(t *testing.T) {
	ctx := context.Background()
	api := &mockMessageAPI{}
	s := NewStreamer(api, "C1", "100.200", "U1")

	s.Append(ctx, "Hello")
	s.Append(ctx, ", world")

	// Within the throttle window the second token is buffered only.
	gt.A(t, api.posted).Length(1)
	gt.A(t, api.updated).Length(0)

	s.lastEdit = time.Now().Add(-time.Second)
	s.Append(ctx, "!")

	gt.A(t, api.updated).Length(1)
	gt.V(t, api.updated[0]).Equal("<@U1>\nHello, world!")
}

func TestStreamerFlushWritesPendingText(t *testing.T) {
	ctx := context.Background()
	api := &mockMessageAPI{}
	s := NewStreamer(api, "C1", "100.200", "U1")

	s.Append(ctx, "Hello")
	s.Append(ctx, " again")
	s.Flush(ctx)

	gt.A(t, api.updated).Length(1)
	gt.V(t, api.updated[0]).Equal("<@U1>\nHello again")
}

func TestStreamerFlushSkipsUnchangedText(t *testing.T) {
	ctx := context.Background()
	api := &mockMessageAPI{}
	s := NewStreamer(api, "C1", "100.200", "U1")

	s.Append(ctx, "Hello")
	s.Flush(ctx)

	gt.A(t, api.updated).Length(0)
}

func TestStreamerSplitsLongResponse(t *testing.T) {
	ctx := context.Background()
	api := &mockMessageAPI{}
	s := NewStreamer(api, "C1", "100.200", "U1")

	s.Append(ctx, strings.Repeat("x", 2000))
	gt.A(t, api.posted).Length(0)

	s.Flush(ctx)

	gt.A(t, api.posted).Length(2)
	gt.S(t, api.posted[0]).Contains("<@U1>\n(1/2) ")
	gt.S(t, api.posted[1]).Contains("(2/2) ")
}
