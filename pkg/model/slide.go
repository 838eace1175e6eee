package model

// SlideTemplate selects the prompt used to write one slide.
type SlideTemplate string

const (
	SlideTemplateTitle   SlideTemplate = "title"
	SlideTemplateDefault SlideTemplate = "default"
	SlideTemplateSection SlideTemplate = "section"
	SlideTemplateQuote   SlideTemplate = "quote"
	SlideTemplateCode    SlideTemplate = "code"
	SlideTemplateImage   SlideTemplate = "image"
	SlideTemplateSplit   SlideTemplate = "split"
)

// Normalize maps unknown template names to the default template.
func (t SlideTemplate) Normalize() SlideTemplate {
	switch t {
	case SlideTemplateTitle, SlideTemplateDefault, SlideTemplateSection,
		SlideTemplateQuote, SlideTemplateCode, SlideTemplateImage, SlideTemplateSplit:
		return t
	default:
		return SlideTemplateDefault
	}
}

// OutlinePage is one planned slide in a deck outline.
type OutlinePage struct {
	Header   string        `json:"header"`
	Content  string        `json:"content"`
	Template SlideTemplate `json:"template"`
	Policy   string        `json:"policy"`
}

// Outline is the deck plan produced before any slide content is written.
type Outline struct {
	Title string        `json:"title"`
	Pages []OutlinePage `json:"pages"`
}

// Slide is one written slide of a Marp deck.
type Slide struct {
	Header          string        `json:"header"`
	Template        SlideTemplate `json:"template"`
	MarkdownContent string        `json:"markdown_content"`
}
