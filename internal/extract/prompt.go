package extract

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/givefood/needwatch/internal/fetch"
)

//go:embed need_prompt.txt
var needPromptText string

var needPromptTmpl = template.Must(template.New("need_prompt").Parse(needPromptText))

// BuildPrompt renders the extraction prompt for a scraped page.
func BuildPrompt(req Request) string {
	var b strings.Builder
	err := needPromptTmpl.Execute(&b, map[string]string{
		"FoodbankName": req.FoodbankName,
		"SourceKind":   string(req.SourceKind),
		"SourceHint":   sourceHint(req.SourceKind),
		"PageText":     req.PageText,
		"PageHTML":     req.PageHTML,
	})
	if err != nil {
		// The template is embedded and the data is all strings, so
		// execution cannot fail at runtime.
		panic(err)
	}
	return b.String()
}

func sourceHint(kind fetch.SourceKind) string {
	switch kind {
	case fetch.SourceFacebook:
		return "The content is a Facebook page feed. Only use the most recent post that mentions donation items, and ignore older posts."
	case fetch.SourceBankTheFood:
		return "The content is JSON from the Bank the Food app, where items with a positive need level are requested."
	default:
		return "The content is the text and markup of the food bank's shopping list web page."
	}
}
