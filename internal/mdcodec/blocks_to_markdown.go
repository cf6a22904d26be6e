// Package mdcodec converts between Markdown text and the remote block tree.
// Both directions are pure: the same input always yields the same output.
package mdcodec

import (
	"strconv"
	"strings"

	"github.com/wikibridge/feishu-sync/internal/feishu"
)

// BlocksToMarkdown renders a fetched block tree as Markdown. When the
// metadata carries a title and the document body does not already start with
// a matching heading, a leading `# title` line is produced.
func BlocksToMarkdown(meta feishu.DocMeta, blocks []feishu.Block) string {
	byID := make(map[string]feishu.Block, len(blocks))
	for _, b := range blocks {
		if b.BlockID != "" {
			byID[b.BlockID] = b
		}
	}

	ordered := bodyBlocks(blocks, byID)

	var parts []string
	var kinds []int
	orderedCounter := 0
	for _, b := range ordered {
		if b.BlockType == feishu.BlockTypeOrdered {
			orderedCounter++
		} else {
			orderedCounter = 0
		}
		text, ok := renderBlock(b, byID, orderedCounter)
		if !ok {
			continue
		}
		parts = append(parts, text)
		kinds = append(kinds, b.BlockType)
	}

	if meta.Title != "" {
		titleLine := "# " + meta.Title
		if len(parts) == 0 || parts[0] != titleLine {
			parts = append([]string{titleLine}, parts...)
			kinds = append([]int{feishu.BlockTypeHeading1}, kinds...)
		}
	}

	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			if isListKind(kinds[i]) && isListKind(kinds[i-1]) {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(part)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// bodyBlocks resolves the page block's child order, falling back to listing
// order for trees without one. Table cells and their contents never render
// at top level.
func bodyBlocks(blocks []feishu.Block, byID map[string]feishu.Block) []feishu.Block {
	for _, b := range blocks {
		if b.BlockType == feishu.BlockTypePage && len(b.Children) > 0 {
			resolved := make([]feishu.Block, 0, len(b.Children))
			for _, childID := range b.Children {
				if child, ok := byID[childID]; ok {
					resolved = append(resolved, child)
				}
			}
			return resolved
		}
	}

	cellOwned := map[string]bool{}
	for _, b := range blocks {
		if b.BlockType == feishu.BlockTypeCell {
			for _, childID := range b.Children {
				cellOwned[childID] = true
			}
		}
	}
	var result []feishu.Block
	for _, b := range blocks {
		if b.BlockType == feishu.BlockTypePage || b.BlockType == feishu.BlockTypeCell {
			continue
		}
		if cellOwned[b.BlockID] {
			continue
		}
		result = append(result, b)
	}
	return result
}

func renderBlock(b feishu.Block, byID map[string]feishu.Block, orderedCounter int) (string, bool) {
	switch b.BlockType {
	case feishu.BlockTypeText:
		return renderInline(bodyElements(b)), true
	case feishu.BlockTypeHeading1, feishu.BlockTypeHeading2, feishu.BlockTypeHeading3,
		feishu.BlockTypeHeading4, feishu.BlockTypeHeading5, feishu.BlockTypeHeading6:
		level := b.BlockType - feishu.BlockTypeHeading1 + 1
		return strings.Repeat("#", level) + " " + renderInline(bodyElements(b)), true
	case feishu.BlockTypeBullet:
		return "- " + renderInline(bodyElements(b)), true
	case feishu.BlockTypeOrdered:
		return strconv.Itoa(orderedCounter) + ". " + renderInline(bodyElements(b)), true
	case feishu.BlockTypeQuote:
		return "> " + renderInline(bodyElements(b)), true
	case feishu.BlockTypeTodo:
		marker := "- [ ] "
		if body := b.Body(); body != nil && body.Style != nil && body.Style.Done {
			marker = "- [x] "
		}
		return marker + renderInline(bodyElements(b)), true
	case feishu.BlockTypeCode:
		return renderCode(b), true
	case feishu.BlockTypeDivider:
		return "---", true
	case feishu.BlockTypeTable:
		return renderTable(b, byID)
	}
	return "", false
}

func bodyElements(b feishu.Block) []feishu.TextElement {
	if body := b.Body(); body != nil {
		return body.Elements
	}
	return nil
}

func renderCode(b feishu.Block) string {
	body := b.Body()
	lang := ""
	content := ""
	if body != nil {
		if body.Style != nil {
			lang = languageName(body.Style.Language)
		}
		var raw strings.Builder
		for _, el := range body.Elements {
			if el.TextRun != nil {
				raw.WriteString(el.TextRun.Content)
			}
		}
		content = raw.String()
	}
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return "```" + lang + "\n```"
	}
	return "```" + lang + "\n" + content + "\n```"
}

func renderTable(b feishu.Block, byID map[string]feishu.Block) (string, bool) {
	if b.Table == nil {
		return "", false
	}
	cols := b.Table.Property.ColumnSize
	rows := b.Table.Property.RowSize
	if cols <= 0 || rows <= 0 {
		return "", false
	}
	cellIDs := b.Children
	if len(cellIDs) == 0 {
		cellIDs = b.Table.Cells
	}

	cellAt := func(row, col int) string {
		idx := row*cols + col
		if idx >= len(cellIDs) {
			return ""
		}
		cell, ok := byID[cellIDs[idx]]
		if !ok {
			return ""
		}
		for _, childID := range cell.Children {
			child, ok := byID[childID]
			if !ok {
				continue
			}
			if body := child.Body(); body != nil {
				return escapeCell(renderInline(body.Elements))
			}
		}
		return ""
	}

	var lines []string
	for row := 0; row < rows; row++ {
		var cells []string
		for col := 0; col < cols; col++ {
			cells = append(cells, cellAt(row, col))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if row == 0 && b.Table.Property.HeaderRow {
			seps := make([]string, cols)
			for i := range seps {
				seps[i] = "---"
			}
			lines = append(lines, "| "+strings.Join(seps, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n"), true
}

func escapeCell(text string) string {
	return strings.ReplaceAll(text, "|", `\|`)
}

func isListKind(blockType int) bool {
	switch blockType {
	case feishu.BlockTypeBullet, feishu.BlockTypeOrdered, feishu.BlockTypeTodo:
		return true
	}
	return false
}
