package model

// BriefQuery is a search query for the smart brief agent. Unlike the
// plain SearchQuery it carries the aspect being researched and the
// rationale for asking, which the LLM uses to diversify coverage.
type BriefQuery struct {
	Query     string `json:"query"`
	Aspect    string `json:"aspect"`
	Rationale string `json:"rationale"`
}

// BriefSection is one section of a smart brief.
type BriefSection struct {
	Headline string  `json:"headline"`
	Content  string  `json:"content"`
	Quotes   []Quote `json:"quotes,omitempty"`
}

// SmartBrief is the structured output of the smart brief agent: a short
// digest of a scraped article enriched with web research.
type SmartBrief struct {
	Title      string         `json:"title"`
	Micro      string         `json:"micro"`
	TLDR       string         `json:"tldr"`
	Sections   []BriefSection `json:"sections"`
	References []Reference    `json:"references,omitempty"`
}
