package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultStyle is the glamour style used when none is given.
const DefaultStyle = "dark"

type CodeBlock struct {
	Language string `json:"language" yaml:"language"`
	Code     string `json:"code" yaml:"code"`
}

// ExtractCodeBlocks returns the fenced code blocks of a markdown message,
// without their fences. If languages is not empty, only blocks whose language
// matches one of them (case-insensitive) are returned.
func ExtractCodeBlocks(content string, languages ...string) ([]CodeBlock, error) {
	var ret []CodeBlock
	source := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := string(cb.Language(source))
		if !matchesLanguage(lang, languages) {
			return ast.WalkSkipChildren, nil
		}
		var code string
		if cb.Lines().Len() > 0 {
			start := cb.Lines().At(0).Start
			stop := cb.Lines().At(cb.Lines().Len() - 1).Stop
			code = string(source[start:stop])
		}
		ret = append(ret, CodeBlock{Language: lang, Code: code})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func matchesLanguage(lang string, languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	for _, l := range languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// Markdown renders content for a terminal with the given glamour style.
func Markdown(content string, style string) (string, error) {
	if style == "" {
		style = DefaultStyle
	}
	return glamour.Render(content, style)
}
