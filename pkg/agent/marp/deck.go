package marp

import (
	"strings"

	"github.com/hirosat/ermine/pkg/model"
	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Marp     bool   `yaml:"marp"`
	Theme    string `yaml:"theme"`
	Paginate bool   `yaml:"paginate"`
	Header   string `yaml:"header"`
	Footer   string `yaml:"footer"`
}

// RenderDeck assembles the Marp Markdown document: YAML front matter
// followed by the slides separated by horizontal rules.
func RenderDeck(slides []model.Slide) string {
	fm, _ := yaml.Marshal(frontMatter{
		Marp:     true,
		Theme:    "default",
		Paginate: true,
	})

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fm)
	sb.WriteString("---\n\n")

	for i, slide := range slides {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		sb.WriteString(slide.MarkdownContent)
	}

	return sb.String()
}
