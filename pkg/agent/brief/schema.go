package brief

import "google.golang.org/genai"

var briefQueriesSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"queries": {
			Type:        genai.TypeArray,
			Description: "検索クエリ（4つ以上）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query":     {Type: genai.TypeString, Description: "Tavily APIで直接利用できる、明確かつ具体的な検索クエリ"},
					"aspect":    {Type: genai.TypeString, Description: "そのクエリが調査するトピックの側面や観点"},
					"rationale": {Type: genai.TypeString, Description: "なぜこのクエリが重要かの簡単な説明"},
				},
				Required: []string{"query", "aspect", "rationale"},
			},
		},
	},
	Required: []string{"queries"},
}

var briefSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {
			Type:        genai.TypeString,
			Description: "レポート全体のタイトル（40字以内、新聞社の見出しのように短く情報が詰まったもの）",
		},
		"micro": {
			Type:        genai.TypeString,
			Description: "読む価値があるかを判定できる内容（100字以内、読者の興味を引く要点や独自性を強調）",
		},
		"tldr": {
			Type:        genai.TypeString,
			Description: "本文を読まずに知識を獲得できる140字以内の要約",
		},
		"references": {
			Type:        genai.TypeArray,
			Description: "レポート全体の参照情報源（1〜10件）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {Type: genai.TypeString, Description: "参照タイトル（80字以内）"},
					"url":   {Type: genai.TypeString, Description: "参照元のURL（完全な形式）"},
				},
				Required: []string{"title", "url"},
			},
		},
		"sections": {
			Type:        genai.TypeArray,
			Description: "レポートの各セクション（4つ以上、起承転結の構成）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"headline": {
						Type:        genai.TypeString,
						Description: "新聞社の見出しのように短く情報が詰まったタイトル（日本語で40字以内、装飾なし）",
					},
					"content": {
						Type:        genai.TypeString,
						Description: "本文（300〜600文字程度、セクションの役割に応じて詳細を記述）",
					},
					"quotes": {
						Type:        genai.TypeArray,
						Description: "関連する重要な引用（最大3件、引用文は80字以内）",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"text":   {Type: genai.TypeString, Description: "引用文（80字以内）"},
								"source": {Type: genai.TypeString, Description: "出典"},
								"url":    {Type: genai.TypeString, Description: "参照元のURL（完全な形式）"},
							},
							Required: []string{"text", "source", "url"},
						},
					},
				},
				Required: []string{"headline", "content", "quotes"},
			},
		},
	},
	Required: []string{"title", "micro", "tldr", "sections"},
}
