// Package notes prepares release notes for the terminal. Release bodies are
// markdown that may embed HTML fragments; the HTML is folded back into
// markdown before glamour renders it.
package notes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultWidth is the word-wrap column used when the terminal width is unknown.
const DefaultWidth = 80

var (
	// Comments count as HTML: generated release bodies start with one.
	htmlTag    = regexp.MustCompile(`<!--|</?[a-zA-Z][^>]*>`)
	stripTags  = regexp.MustCompile(`(?s)<!--.*?-->|</?[a-zA-Z][^>]*>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Markdown converts inline HTML in body to markdown. Bodies without tags
// are returned trimmed.
func Markdown(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	if !htmlTag.MatchString(body) {
		return strings.TrimSpace(body)
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctx)
	if err != nil {
		return strings.TrimSpace(stripTags.ReplaceAllString(body, ""))
	}

	var sb strings.Builder
	for _, n := range nodes {
		writeNode(&sb, n, 0)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(sb.String(), "\n\n"))
}

func writeNode(sb *strings.Builder, n *html.Node, depth int) {
	if depth > 50 {
		return
	}

	switch n.Type {
	case html.TextNode:
		// Markdown around the tags lives in text nodes and must survive.
		sb.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "br":
			sb.WriteString("\n")
			return
		case "hr":
			sb.WriteString("\n\n---\n\n")
			return
		case "img":
			if alt := attr(n, "alt"); alt != "" {
				fmt.Fprintf(sb, "[%s]", alt)
			}
			return
		case "h1", "h2", "h3", "h4":
			sb.WriteString("\n\n" + strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		case "p", "div", "details":
			sb.WriteString("\n\n")
		case "li":
			sb.WriteString("\n- ")
		case "summary", "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "code":
			sb.WriteString("`")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "a":
			sb.WriteString("[")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(sb, c, depth+1)
	}

	if n.Type != html.ElementNode {
		return
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4", "p", "div", "ul", "ol":
		sb.WriteString("\n\n")
	case "summary":
		sb.WriteString("**\n\n")
	case "strong", "b":
		sb.WriteString("**")
	case "em", "i":
		sb.WriteString("*")
	case "code":
		sb.WriteString("`")
	case "pre":
		sb.WriteString("\n```\n\n")
	case "a":
		if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
			fmt.Fprintf(sb, "](%s)", href)
		} else {
			sb.WriteString("]")
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Plain strips all markup, for logs and non-terminal output.
func Plain(body string) string {
	md := Markdown(body)
	md = strings.NewReplacer("**", "", "`", "").Replace(md)
	lines := strings.Split(md, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(strings.TrimRight(l, " \t"), "# ")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// Renderer renders release notes with glamour.
type Renderer struct {
	style string
	width int
}

// NewRenderer creates a renderer. An empty style picks one from the
// terminal background.
func NewRenderer(style string, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{style: style, width: width}
}

// Render formats body for display. Rendering failures fall back to Plain.
func (r *Renderer) Render(body string) string {
	md := Markdown(body)
	if md == "" {
		return ""
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(r.width)}
	if r.style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(r.style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain(body)
	}
	out, err := tr.Render(md)
	if err != nil {
		return Plain(body)
	}
	return strings.TrimRight(out, "\n")
}
