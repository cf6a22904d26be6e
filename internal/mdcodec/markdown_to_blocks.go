package mdcodec

import (
	"strings"

	"github.com/wikibridge/feishu-sync/internal/feishu"
)

// MarkdownToBlocks parses Markdown into an uploadable block list. A top-level
// heading on the first non-blank line becomes the document title and is
// omitted from the body; otherwise the title is empty. A top-level heading
// further down is not taken as the title and stays in the body.
func MarkdownToBlocks(markdown string) (string, []feishu.Block) {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	title := ""
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) && strings.HasPrefix(lines[i], "# ") {
		title = strings.TrimSpace(strings.TrimPrefix(lines[i], "# "))
		i++
	}

	var blocks []feishu.Block
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++
		case strings.HasPrefix(trimmed, "```"):
			block, next := parseCodeFence(lines, i)
			blocks = append(blocks, block)
			i = next
		case isTableRow(trimmed):
			block, next := parseTable(lines, i)
			blocks = append(blocks, block)
			i = next
		case trimmed == "---" || trimmed == "***":
			blocks = append(blocks, feishu.Block{
				BlockType: feishu.BlockTypeDivider,
				Divider:   &struct{}{},
			})
			i++
		default:
			blocks = append(blocks, parseLine(trimmed))
			i++
		}
	}
	return title, blocks
}

func parseLine(line string) feishu.Block {
	if level, rest, ok := matchHeading(line); ok {
		block := feishu.Block{BlockType: feishu.BlockTypeHeading1 + level - 1}
		body := &feishu.TextBlock{Elements: parseInline(rest)}
		switch level {
		case 1:
			block.Heading1 = body
		case 2:
			block.Heading2 = body
		case 3:
			block.Heading3 = body
		case 4:
			block.Heading4 = body
		case 5:
			block.Heading5 = body
		case 6:
			block.Heading6 = body
		}
		return block
	}
	if rest, done, ok := matchTodo(line); ok {
		return feishu.Block{
			BlockType: feishu.BlockTypeTodo,
			Todo: &feishu.TextBlock{
				Elements: parseInline(rest),
				Style:    &feishu.TextStyle{Done: done},
			},
		}
	}
	if rest, ok := matchListItem(line, "- "); ok {
		return bulletBlock(rest)
	}
	if rest, ok := matchListItem(line, "* "); ok {
		return bulletBlock(rest)
	}
	if rest, ok := matchOrdered(line); ok {
		return feishu.Block{
			BlockType: feishu.BlockTypeOrdered,
			Ordered:   &feishu.TextBlock{Elements: parseInline(rest)},
		}
	}
	if strings.HasPrefix(line, "> ") {
		return feishu.Block{
			BlockType: feishu.BlockTypeQuote,
			Quote:     &feishu.TextBlock{Elements: parseInline(strings.TrimPrefix(line, "> "))},
		}
	}
	return feishu.Block{
		BlockType: feishu.BlockTypeText,
		Text:      &feishu.TextBlock{Elements: parseInline(line)},
	}
}

func bulletBlock(text string) feishu.Block {
	return feishu.Block{
		BlockType: feishu.BlockTypeBullet,
		Bullet:    &feishu.TextBlock{Elements: parseInline(text)},
	}
}

func matchHeading(line string) (level int, rest string, ok bool) {
	for level = 1; level <= 6; level++ {
		prefix := strings.Repeat("#", level) + " "
		if strings.HasPrefix(line, prefix) {
			return level, strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return 0, "", false
}

func matchTodo(line string) (rest string, done, ok bool) {
	switch {
	case strings.HasPrefix(line, "- [ ] "):
		return strings.TrimPrefix(line, "- [ ] "), false, true
	case strings.HasPrefix(line, "- [x] "), strings.HasPrefix(line, "- [X] "):
		return line[len("- [x] "):], true, true
	}
	return "", false, false
}

func matchListItem(line, marker string) (string, bool) {
	if strings.HasPrefix(line, marker) {
		return strings.TrimPrefix(line, marker), true
	}
	return "", false
}

func matchOrdered(line string) (string, bool) {
	dot := strings.Index(line, ". ")
	if dot <= 0 {
		return "", false
	}
	for _, r := range line[:dot] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return line[dot+2:], true
}

func parseCodeFence(lines []string, start int) (feishu.Block, int) {
	lang := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[start]), "```"))
	var content []string
	i := start + 1
	for i < len(lines) && strings.TrimSpace(lines[i]) != "```" {
		content = append(content, lines[i])
		i++
	}
	if i < len(lines) {
		i++ // closing fence
	}
	return feishu.Block{
		BlockType: feishu.BlockTypeCode,
		Code: &feishu.TextBlock{
			Elements: []feishu.TextElement{
				{TextRun: &feishu.TextRun{Content: strings.Join(content, "\n")}},
			},
			Style: &feishu.TextStyle{Language: languageCode(lang)},
		},
	}, i
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2
}

func isTableSeparator(line string) bool {
	if !isTableRow(line) {
		return false
	}
	for _, cell := range splitTableRow(line) {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if strings.Trim(cell, ":-") != "" {
			return false
		}
	}
	return true
}

func parseTable(lines []string, start int) (feishu.Block, int) {
	var rowLines []string
	i := start
	for i < len(lines) && isTableRow(strings.TrimSpace(lines[i])) {
		rowLines = append(rowLines, strings.TrimSpace(lines[i]))
		i++
	}

	headerRow := false
	if len(rowLines) >= 2 && isTableSeparator(rowLines[1]) {
		headerRow = true
		rowLines = append(rowLines[:1], rowLines[2:]...)
	}

	cols := 0
	var rows [][]feishu.Block
	var cellTexts [][]string
	for _, rowLine := range rowLines {
		cells := splitTableRow(rowLine)
		if len(cells) > cols {
			cols = len(cells)
		}
		cellTexts = append(cellTexts, cells)
	}
	for _, cells := range cellTexts {
		row := make([]feishu.Block, cols)
		for col := 0; col < cols; col++ {
			if col >= len(cells) {
				continue
			}
			text := strings.TrimSpace(cells[col])
			if text == "" {
				continue
			}
			row[col] = feishu.Block{
				BlockType: feishu.BlockTypeText,
				Text:      &feishu.TextBlock{Elements: parseInline(text)},
			}
		}
		rows = append(rows, row)
	}

	return feishu.Block{
		BlockType: feishu.BlockTypeTable,
		Table: &feishu.TableBlock{
			Property: feishu.TableProperty{
				RowSize:    len(rows),
				ColumnSize: cols,
				HeaderRow:  headerRow,
			},
			Rows: rows,
		},
	}, i
}

// splitTableRow splits a `| a | b |` line into cell texts, honoring escaped
// pipes.
func splitTableRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	var cells []string
	var current strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			if r != '|' {
				current.WriteByte('\\')
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteByte('\\')
	}
	cells = append(cells, current.String())
	return cells
}
