package mdcodec

import (
	"strings"

	"github.com/wikibridge/feishu-sync/internal/feishu"
)

// renderInline flattens styled text elements back into markdown. The mapping
// is injective on the supported subset (bold, italic, strikethrough, inline
// code, links) so two distinct remote runs never collapse into the same text.
func renderInline(elements []feishu.TextElement) string {
	var b strings.Builder
	for _, el := range elements {
		run := el.TextRun
		if run == nil {
			continue
		}
		text := run.Content
		if run.Style != nil {
			if run.Style.InlineCode {
				text = "`" + text + "`"
			}
			if run.Style.Bold {
				text = "**" + text + "**"
			}
			if run.Style.Italic {
				text = "*" + text + "*"
			}
			if run.Style.Strikethrough {
				text = "~~" + text + "~~"
			}
			if run.Style.Link != nil && run.Style.Link.URL != "" {
				text = "[" + text + "](" + run.Style.Link.URL + ")"
			}
		}
		b.WriteString(text)
	}
	return b.String()
}

// parseInline splits a markdown line into styled text elements.
func parseInline(text string) []feishu.TextElement {
	return parseInlineStyled(text, feishu.TextElementStyle{})
}

func parseInlineStyled(text string, base feishu.TextElementStyle) []feishu.TextElement {
	var elements []feishu.TextElement
	var plain strings.Builder

	flushPlain := func() {
		if plain.Len() == 0 {
			return
		}
		elements = append(elements, textElement(plain.String(), base))
		plain.Reset()
	}

	for i := 0; i < len(text); {
		if inner, url, next, ok := matchLink(text, i); ok {
			flushPlain()
			linked := base
			linked.Link = &feishu.Link{URL: url}
			elements = append(elements, parseInlineStyled(inner, linked)...)
			i = next
			continue
		}
		if inner, next, ok := matchDelimited(text, i, "**"); ok {
			flushPlain()
			styled := base
			styled.Bold = true
			elements = append(elements, parseInlineStyled(inner, styled)...)
			i = next
			continue
		}
		if inner, next, ok := matchDelimited(text, i, "~~"); ok {
			flushPlain()
			styled := base
			styled.Strikethrough = true
			elements = append(elements, parseInlineStyled(inner, styled)...)
			i = next
			continue
		}
		if inner, next, ok := matchDelimited(text, i, "*"); ok {
			flushPlain()
			styled := base
			styled.Italic = true
			elements = append(elements, parseInlineStyled(inner, styled)...)
			i = next
			continue
		}
		if inner, next, ok := matchDelimited(text, i, "`"); ok {
			flushPlain()
			styled := base
			styled.InlineCode = true
			elements = append(elements, textElement(inner, styled))
			i = next
			continue
		}
		plain.WriteByte(text[i])
		i++
	}
	flushPlain()
	if len(elements) == 0 {
		elements = append(elements, textElement("", base))
	}
	return elements
}

func textElement(content string, style feishu.TextElementStyle) feishu.TextElement {
	run := &feishu.TextRun{Content: content}
	if style != (feishu.TextElementStyle{}) {
		copied := style
		run.Style = &copied
	}
	return feishu.TextElement{TextRun: run}
}

// matchDelimited matches marker...marker starting at i with non-empty inner
// text. The single-star case refuses a leading "**" so bold is tried first by
// the caller.
func matchDelimited(text string, i int, marker string) (inner string, next int, ok bool) {
	if !strings.HasPrefix(text[i:], marker) {
		return "", 0, false
	}
	start := i + len(marker)
	end := strings.Index(text[start:], marker)
	if end <= 0 {
		return "", 0, false
	}
	return text[start : start+end], start + end + len(marker), true
}

func matchLink(text string, i int) (inner, url string, next int, ok bool) {
	if text[i] != '[' {
		return "", "", 0, false
	}
	closeBracket := strings.Index(text[i:], "](")
	if closeBracket < 0 {
		return "", "", 0, false
	}
	closeBracket += i
	closeParen := strings.IndexByte(text[closeBracket:], ')')
	if closeParen < 0 {
		return "", "", 0, false
	}
	closeParen += closeBracket
	inner = text[i+1 : closeBracket]
	url = text[closeBracket+2 : closeParen]
	if url == "" {
		return "", "", 0, false
	}
	return inner, url, closeParen + 1, true
}
