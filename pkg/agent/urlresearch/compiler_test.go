package urlresearch

import (
	"context"
	"strings"
	"testing"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	adapter.Gemini
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestCompileReport(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return textResponse("AIエージェントの新潮流"), nil
			case 2:
				return textResponse(strings.Repeat("要", 70)), nil
			case 3:
				return textResponse("1) 一行目の要約\n2) 二行目の要約\n3) 三行目の要約"), nil
			default:
				return textResponse("AI, エージェント, 自動化"), nil
			}
		},
	}

	agent := New(mockGem, nil, nil)
	article := &model.Article{
		URL:   "https://example.com/post",
		Title: "Original Title",
	}
	sections := []model.Section{
		{Headline: "概要", Content: strings.Repeat("本文", 150), Research: true},
		{Headline: "詳細", Content: "詳細の本文", Research: true},
		{Headline: "まとめ", Content: "まとめの本文"},
	}

	report := agent.compileReport(ctx, article, sections)

	gt.V(t, report.Title).Equal("AIエージェントの新潮流")
	gt.V(t, report.Input.URL).Equal("https://example.com/post")
	gt.V(t, report.Input.Title).Equal("Original Title")
	gt.V(t, len([]rune(report.Micro))).Equal(70)
	gt.A(t, report.Digest).Length(3)
	gt.V(t, report.Digest[0]).Equal("一行目の要約")
	gt.V(t, report.ReadState).Equal("unread")
	gt.V(t, report.EstimatedMinutes).Equal(2)
	gt.True(t, report.Importance >= 0.70 && report.Importance <= 0.95)
	gt.True(t, string(report.ID) != "")
	// Under five LLM tags triggers backfill with every section headline.
	gt.A(t, report.Tags).Length(6)
	gt.V(t, report.Tags[3]).Equal("概要")
	gt.V(t, report.Tags[5]).Equal("まとめ")
}

func TestAdjustMicro(t *testing.T) {
	t.Run("short summary is padded", func(t *testing.T) {
		micro := adjustMicro("短い要約")
		gt.V(t, len([]rune(micro))).Equal(60)
		gt.S(t, micro).Contains("短い要約...")
	})

	t.Run("just-under-minimum summary gets the ellipsis only", func(t *testing.T) {
		for _, n := range []int{58, 59} {
			micro := adjustMicro(strings.Repeat("う", n))
			gt.V(t, len([]rune(micro))).Equal(n + 3)
			gt.S(t, micro).Contains("...")
		}
	})

	t.Run("long summary is truncated", func(t *testing.T) {
		micro := adjustMicro(strings.Repeat("あ", 100))
		gt.V(t, len([]rune(micro))).Equal(80)
		gt.S(t, micro).Contains("...")
	})

	t.Run("in-range summary is unchanged", func(t *testing.T) {
		in := strings.Repeat("い", 65)
		gt.V(t, adjustMicro(in)).Equal(in)
	})
}

func TestParseDigest(t *testing.T) {
	t.Run("numbered lines are cleaned", func(t *testing.T) {
		digest := parseDigest("1) 最初の行\n2. 次の行\n3 最後の行")
		gt.A(t, digest).Length(3)
		gt.V(t, digest[0]).Equal("最初の行")
		gt.V(t, digest[1]).Equal("次の行")
		gt.V(t, digest[2]).Equal("最後の行")
	})

	t.Run("missing lines are padded", func(t *testing.T) {
		digest := parseDigest("1) たった一行")
		gt.A(t, digest).Length(3)
		gt.V(t, digest[1]).Equal(digestFiller)
		gt.V(t, digest[2]).Equal(digestFiller)
	})

	t.Run("long lines are capped at 50 characters", func(t *testing.T) {
		digest := parseDigest(strings.Repeat("長", 60))
		gt.V(t, len([]rune(digest[0]))).Equal(50)
		gt.S(t, digest[0]).Contains("...")
	})
}

func TestParseTags(t *testing.T) {
	sections := []model.Section{
		{Headline: "第一章"},
		{Headline: "第二章"},
		{Headline: "第三章"},
	}

	t.Run("enough tags pass through", func(t *testing.T) {
		tags := parseTags("a, b, c, d, e, f", sections)
		gt.A(t, tags).Length(6)
	})

	t.Run("too few tags are backfilled from headlines", func(t *testing.T) {
		tags := parseTags("a, b", sections)
		gt.A(t, tags).Length(5)
		gt.V(t, tags[2]).Equal("第一章")
	})

	t.Run("tags are capped at ten", func(t *testing.T) {
		tags := parseTags("1,2,3,4,5,6,7,8,9,10,11,12", sections)
		gt.A(t, tags).Length(10)
	})
}
