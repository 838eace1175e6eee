package marp

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/outline.md
var outlineRaw string

//go:embed prompt/slide_title.md
var slideTitleRaw string

//go:embed prompt/slide_default.md
var slideDefaultRaw string

//go:embed prompt/slide_section.md
var slideSectionRaw string

//go:embed prompt/slide_quote.md
var slideQuoteRaw string

//go:embed prompt/slide_code.md
var slideCodeRaw string

//go:embed prompt/slide_image.md
var slideImageRaw string

//go:embed prompt/slide_split.md
var slideSplitRaw string

var outlineTmpl = template.Must(template.New("outline").Parse(outlineRaw))

var slideTmpls = map[model.SlideTemplate]*template.Template{
	model.SlideTemplateTitle:   template.Must(template.New("slide_title").Parse(slideTitleRaw)),
	model.SlideTemplateDefault: template.Must(template.New("slide_default").Parse(slideDefaultRaw)),
	model.SlideTemplateSection: template.Must(template.New("slide_section").Parse(slideSectionRaw)),
	model.SlideTemplateQuote:   template.Must(template.New("slide_quote").Parse(slideQuoteRaw)),
	model.SlideTemplateCode:    template.Must(template.New("slide_code").Parse(slideCodeRaw)),
	model.SlideTemplateImage:   template.Must(template.New("slide_image").Parse(slideImageRaw)),
	model.SlideTemplateSplit:   template.Must(template.New("slide_split").Parse(slideSplitRaw)),
}

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return sb.String(), nil
}

var outlineSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {Type: genai.TypeString, Description: "Deck title"},
		"pages": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"header":   {Type: genai.TypeString, Description: "Slide heading"},
					"content":  {Type: genai.TypeString, Description: "What the slide covers"},
					"template": {Type: genai.TypeString, Enum: []string{"title", "default", "section", "quote", "code", "image", "split"}},
					"policy":   {Type: genai.TypeString, Description: "Guidance for writing the slide"},
				},
				Required: []string{"header", "content", "template", "policy"},
			},
		},
	},
	Required: []string{"title", "pages"},
}

var slideSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"header":           {Type: genai.TypeString, Description: "Slide heading"},
		"template":         {Type: genai.TypeString, Enum: []string{"title", "default", "section", "quote", "code", "image", "split"}},
		"markdown_content": {Type: genai.TypeString, Description: "Marp Markdown for the slide"},
	},
	Required: []string{"header", "template", "markdown_content"},
}
