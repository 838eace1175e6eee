package urlresearch

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/title.md
var titleRaw string

//go:embed prompt/micro.md
var microRaw string

//go:embed prompt/digest.md
var digestRaw string

//go:embed prompt/tags.md
var tagsRaw string

//go:embed prompt/final_section.md
var finalSectionRaw string

var (
	titleTmpl        = template.Must(template.New("title").Parse(titleRaw))
	microTmpl        = template.Must(template.New("micro").Parse(microRaw))
	digestTmpl       = template.Must(template.New("digest").Parse(digestRaw))
	tagsTmpl         = template.Must(template.New("tags").Parse(tagsRaw))
	finalSectionTmpl = template.Must(template.New("final_section").Parse(finalSectionRaw))
)

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return sb.String(), nil
}

var finalSectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"headline": {
			Type:        genai.TypeString,
			Description: "セクションのタイトル（日本語で40字以内、装飾なし）",
		},
		"content": {
			Type:        genai.TypeString,
			Description: "本文（日本語で200〜300文字以内、最初の文で重要な洞察を述べる）",
		},
		"quotes": {
			Type:        genai.TypeArray,
			Description: "関連する重要な引用（正確に3件）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":   {Type: genai.TypeString, Description: "引用文（80字以内）"},
					"source": {Type: genai.TypeString, Description: "出典"},
					"url":    {Type: genai.TypeString, Description: "参照元のURL"},
				},
				Required: []string{"text", "source", "url"},
			},
		},
		"references": {
			Type:        genai.TypeArray,
			Description: "参照情報源（1〜3件）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {Type: genai.TypeString, Description: "参照タイトル（80字以内）"},
					"url":   {Type: genai.TypeString, Description: "参照元のURL"},
				},
				Required: []string{"title", "url"},
			},
		},
	},
	Required: []string{"headline", "content", "quotes", "references"},
}
