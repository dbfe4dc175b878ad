// Package format turns the CommonMark replies Pulse composes into the
// HTML subset the Telegram Bot API accepts, and holds small text helpers
// shared by the reply builders.
package format

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxMessageLength is Telegram's limit on message text.
const MaxMessageLength = 4096

var parser = goldmark.New().Parser()

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// Escape escapes s for Telegram HTML.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// TelegramHTML renders CommonMark as Telegram HTML. Constructs Telegram
// cannot display (headings, lists, rules) become bold lines, bullets and
// plain separators; raw HTML in the input is escaped, never passed through.
func TelegramHTML(md string) string {
	src := []byte(md)
	doc := parser.Parse(text.NewReader(src))

	r := &renderer{src: src}
	r.blocks(doc, "\n\n")
	return strings.TrimSpace(r.sb.String())
}

type renderer struct {
	src []byte
	sb  strings.Builder
}

// blocks renders the block children of n separated by sep.
func (r *renderer) blocks(n ast.Node, sep string) {
	first := true
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if !first {
			r.sb.WriteString(sep)
		}
		first = false
		r.block(c)
	}
}

func (r *renderer) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.inlines(n)
	case *ast.Heading:
		r.sb.WriteString("<b>")
		r.inlines(n)
		r.sb.WriteString("</b>")
	case *ast.List:
		i := n.Start
		first := true
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			if !first {
				r.sb.WriteString("\n")
			}
			first = false
			if n.IsOrdered() {
				fmt.Fprintf(&r.sb, "%d. ", i)
				i++
			} else {
				r.sb.WriteString("• ")
			}
			r.blocks(item, "\n")
		}
	case *ast.Blockquote:
		r.sb.WriteString("<blockquote>")
		r.blocks(n, "\n\n")
		r.sb.WriteString("</blockquote>")
	case *ast.FencedCodeBlock:
		lang := string(n.Language(r.src))
		if lang != "" {
			fmt.Fprintf(&r.sb, `<pre><code class="language-%s">`, Escape(lang))
		} else {
			r.sb.WriteString("<pre>")
		}
		r.lines(n)
		if lang != "" {
			r.sb.WriteString("</code>")
		}
		r.sb.WriteString("</pre>")
	case *ast.CodeBlock:
		r.sb.WriteString("<pre>")
		r.lines(n)
		r.sb.WriteString("</pre>")
	case *ast.ThematicBreak:
		r.sb.WriteString("———")
	case *ast.HTMLBlock:
		r.lines(n)
		if n.HasClosure() {
			r.sb.WriteString(Escape(string(n.ClosureLine.Value(r.src))))
		}
	default:
		if n.Type() == ast.TypeBlock {
			r.blocks(n, "\n\n")
		} else {
			r.inline(n)
		}
	}
}

// lines writes the escaped raw lines of a code or HTML block.
func (r *renderer) lines(n ast.Node) {
	var buf strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(r.src))
	}
	r.sb.WriteString(Escape(strings.TrimRight(buf.String(), "\n")))
}

func (r *renderer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(c)
	}
}

func (r *renderer) inline(n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		r.sb.WriteString(Escape(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.sb.WriteString("\n")
		}
	case *ast.String:
		r.sb.WriteString(Escape(string(n.Value)))
	case *ast.Emphasis:
		tag := "i"
		if n.Level >= 2 {
			tag = "b"
		}
		r.sb.WriteString("<" + tag + ">")
		r.inlines(n)
		r.sb.WriteString("</" + tag + ">")
	case *ast.CodeSpan:
		r.sb.WriteString("<code>")
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				r.sb.WriteString(Escape(string(t.Segment.Value(r.src))))
			}
		}
		r.sb.WriteString("</code>")
	case *ast.Link:
		fmt.Fprintf(&r.sb, `<a href="%s">`, Escape(string(n.Destination)))
		r.inlines(n)
		r.sb.WriteString("</a>")
	case *ast.AutoLink:
		url := string(n.URL(r.src))
		fmt.Fprintf(&r.sb, `<a href="%s">%s</a>`, Escape(url), Escape(string(n.Label(r.src))))
	case *ast.Image:
		r.inlines(n)
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			r.sb.WriteString(Escape(string(seg.Value(r.src))))
		}
	default:
		r.inlines(n)
	}
}
