package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	tagPattern    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	brPattern     = regexp.MustCompile(`<br\s*/?>`)
	blockBoundary = regexp.MustCompile(`</(p|li|h[1-6]|pre|blockquote)>`)
)

// plainRenderer renders without smartypants so quotes and dashes survive as typed.
func plainRenderer() blackfriday.Renderer {
	return blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.UseXHTML,
	})
}

// ToPlainText renders chat markdown and strips every tag and entity, leaving
// single-spaced text suitable for prompt context.
func ToPlainText(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	out := string(blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(plainRenderer()),
	))

	out = brPattern.ReplaceAllString(out, " ")
	out = blockBoundary.ReplaceAllString(out, " ")
	out = tagPattern.ReplaceAllString(out, "")
	out = html.UnescapeString(out)

	// raw tags the author typed were escaped by the renderer; drop them too
	out = tagPattern.ReplaceAllString(out, "")

	return strings.Join(strings.Fields(out), " ")
}
