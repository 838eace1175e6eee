package jsonx_test

import (
	"testing"

	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/m-mizutani/gt"
)

func TestExtractBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fenced block",
			input:    "here you go:\n```json\n{\"grade\": \"pass\"}\n```\nhope that helps",
			expected: `{"grade": "pass"}`,
		},
		{
			name:     "bare json",
			input:    `{"grade": "fail"}`,
			expected: `{"grade": "fail"}`,
		},
		{
			name:     "first of multiple blocks",
			input:    "```json\n{\"a\": 1}\n```\n```json\n{\"b\": 2}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "whitespace trimmed",
			input:    "  \n {\"a\": 1} \n",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.V(t, jsonx.ExtractBlock(tt.input)).Equal(tt.expected)
		})
	}
}

func TestUnmarshal(t *testing.T) {
	t.Run("valid fenced payload", func(t *testing.T) {
		var out struct {
			Grade string `json:"grade"`
		}
		ok := jsonx.Unmarshal("```json\n{\"grade\": \"pass\"}\n```", &out)
		gt.B(t, ok).True()
		gt.V(t, out.Grade).Equal("pass")
	})

	t.Run("broken payload keeps defaults", func(t *testing.T) {
		out := struct {
			Grade string `json:"grade"`
		}{Grade: "fail"}
		ok := jsonx.Unmarshal("the model rambled instead of answering", &out)
		gt.B(t, ok).False()
		gt.V(t, out.Grade).Equal("fail")
	})

	t.Run("empty input", func(t *testing.T) {
		var out map[string]any
		gt.B(t, jsonx.Unmarshal("", &out)).False()
	})
}
