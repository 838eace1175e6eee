package research

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/plan_queries.md
var planQueriesRaw string

//go:embed prompt/plan_sections.md
var planSectionsRaw string

//go:embed prompt/section_queries.md
var sectionQueriesRaw string

//go:embed prompt/section_writer.md
var sectionWriterRaw string

//go:embed prompt/section_grader.md
var sectionGraderRaw string

//go:embed prompt/final_section.md
var finalSectionRaw string

//go:embed prompt/query_writer.md
var queryWriterRaw string

//go:embed prompt/summarizer.md
var summarizerRaw string

//go:embed prompt/reflection.md
var reflectionRaw string

//go:embed prompt/section_writer_json.md
var sectionWriterJSONRaw string

var (
	planQueriesTmpl    = template.Must(template.New("plan_queries").Parse(planQueriesRaw))
	planSectionsTmpl   = template.Must(template.New("plan_sections").Parse(planSectionsRaw))
	sectionQueriesTmpl = template.Must(template.New("section_queries").Parse(sectionQueriesRaw))
	sectionWriterTmpl  = template.Must(template.New("section_writer").Parse(sectionWriterRaw))
	sectionGraderTmpl  = template.Must(template.New("section_grader").Parse(sectionGraderRaw))
	finalSectionTmpl   = template.Must(template.New("final_section").Parse(finalSectionRaw))
	queryWriterTmpl    = template.Must(template.New("query_writer").Parse(queryWriterRaw))
	reflectionTmpl     = template.Must(template.New("reflection").Parse(reflectionRaw))
)

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return buf.String(), nil
}

// queriesSchema is the structured output schema for search query lists.
var queriesSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"queries": {
			Type:        genai.TypeArray,
			Description: "List of search queries",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"search_query": {
						Type:        genai.TypeString,
						Description: "Query for web search",
					},
				},
				Required: []string{"search_query"},
			},
		},
	},
	Required: []string{"queries"},
}

// sectionsSchema is the structured output schema for report plans.
var sectionsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sections": {
			Type:        genai.TypeArray,
			Description: "Sections of the report",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"headline": {
						Type:        genai.TypeString,
						Description: "Name for this section of the report",
					},
					"description": {
						Type:        genai.TypeString,
						Description: "Brief overview of the main topics covered in this section",
					},
					"research": {
						Type:        genai.TypeBoolean,
						Description: "Whether to perform web research for this section",
					},
					"content": {
						Type:        genai.TypeString,
						Description: "The content of the section, left blank for now",
					},
				},
				Required: []string{"headline", "description", "research"},
			},
		},
	},
	Required: []string{"sections"},
}

// feedbackSchema is the structured output schema for section grading.
var feedbackSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"grade": {
			Type:        genai.TypeString,
			Enum:        []string{"pass", "fail"},
			Description: "Whether the section meets requirements",
		},
		"follow_up_queries": {
			Type:        genai.TypeArray,
			Description: "Follow-up search queries when the grade is fail",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"search_query": {
						Type:        genai.TypeString,
						Description: "A search query for additional information",
					},
				},
				Required: []string{"search_query"},
			},
		},
	},
	Required: []string{"grade"},
}
