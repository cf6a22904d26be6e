package feishu

// Block type codes used by the document API.
const (
	BlockTypePage     = 1
	BlockTypeText     = 2
	BlockTypeHeading1 = 3
	BlockTypeHeading2 = 4
	BlockTypeHeading3 = 5
	BlockTypeHeading4 = 6
	BlockTypeHeading5 = 7
	BlockTypeHeading6 = 8
	BlockTypeBullet   = 12
	BlockTypeOrdered  = 13
	BlockTypeCode     = 14
	BlockTypeQuote    = 15
	BlockTypeTodo     = 17
	BlockTypeDivider  = 22
	BlockTypeTable    = 31
	BlockTypeCell     = 32
)

type Link struct {
	URL string `json:"url"`
}

type TextElementStyle struct {
	Bold          bool  `json:"bold,omitempty"`
	Italic        bool  `json:"italic,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
	InlineCode    bool  `json:"inline_code,omitempty"`
	Link          *Link `json:"link,omitempty"`
}

type TextRun struct {
	Content string            `json:"content"`
	Style   *TextElementStyle `json:"text_element_style,omitempty"`
}

type TextElement struct {
	TextRun *TextRun `json:"text_run,omitempty"`
}

type TextStyle struct {
	Language int  `json:"language,omitempty"`
	Done     bool `json:"done,omitempty"`
}

type TextBlock struct {
	Elements []TextElement `json:"elements"`
	Style    *TextStyle    `json:"style,omitempty"`
}

type TableProperty struct {
	RowSize    int  `json:"row_size"`
	ColumnSize int  `json:"column_size"`
	HeaderRow  bool `json:"header_row,omitempty"`
}

type TableBlock struct {
	Property TableProperty `json:"property"`
	Cells    []string      `json:"cells,omitempty"`

	// Rows carries ready-to-post cell blocks for a table the uploader has
	// not created yet, row-major. Cell ids exist only after the skeleton is
	// posted, so the content rides outside the wire format until then. A
	// zero-value Block marks an empty cell.
	Rows [][]Block `json:"-"`
}

type Block struct {
	BlockID   string      `json:"block_id,omitempty"`
	ParentID  string      `json:"parent_id,omitempty"`
	BlockType int         `json:"block_type"`
	Children  []string    `json:"children,omitempty"`
	Page      *TextBlock  `json:"page,omitempty"`
	Text      *TextBlock  `json:"text,omitempty"`
	Heading1  *TextBlock  `json:"heading1,omitempty"`
	Heading2  *TextBlock  `json:"heading2,omitempty"`
	Heading3  *TextBlock  `json:"heading3,omitempty"`
	Heading4  *TextBlock  `json:"heading4,omitempty"`
	Heading5  *TextBlock  `json:"heading5,omitempty"`
	Heading6  *TextBlock  `json:"heading6,omitempty"`
	Bullet    *TextBlock  `json:"bullet,omitempty"`
	Ordered   *TextBlock  `json:"ordered,omitempty"`
	Code      *TextBlock  `json:"code,omitempty"`
	Quote     *TextBlock  `json:"quote,omitempty"`
	Todo      *TextBlock  `json:"todo,omitempty"`
	Divider   *struct{}   `json:"divider,omitempty"`
	Table     *TableBlock `json:"table,omitempty"`
	TableCell *struct{}   `json:"table_cell,omitempty"`
}

// Body returns the text payload matching the block's type, nil for blocks
// without one.
func (b *Block) Body() *TextBlock {
	switch b.BlockType {
	case BlockTypePage:
		return b.Page
	case BlockTypeText:
		return b.Text
	case BlockTypeHeading1:
		return b.Heading1
	case BlockTypeHeading2:
		return b.Heading2
	case BlockTypeHeading3:
		return b.Heading3
	case BlockTypeHeading4:
		return b.Heading4
	case BlockTypeHeading5:
		return b.Heading5
	case BlockTypeHeading6:
		return b.Heading6
	case BlockTypeBullet:
		return b.Bullet
	case BlockTypeOrdered:
		return b.Ordered
	case BlockTypeCode:
		return b.Code
	case BlockTypeQuote:
		return b.Quote
	case BlockTypeTodo:
		return b.Todo
	}
	return nil
}

// DocNode is one document reachable in a wiki space tree.
type DocNode struct {
	NodeToken  string
	DocumentID string
	Title      string
	ObjType    string
}

// DocMeta is the freshly fetched identity of a document.
type DocMeta struct {
	DocumentID string
	Title      string
	RevisionID string
}

// wikiNode is the wire form of a space tree node.
type wikiNode struct {
	NodeToken string `json:"node_token"`
	ObjToken  string `json:"obj_token"`
	ObjType   string `json:"obj_type"`
	Title     string `json:"title"`
	HasChild  bool   `json:"has_child"`
}
