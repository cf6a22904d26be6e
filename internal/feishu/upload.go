package feishu

import (
	"context"
)

// ReplaceDocumentContent swaps the document body wholesale: existing children
// of the page block are batch-deleted from index 0, then the new blocks are
// appended in batches within the API limit. Table cells are filled in a second
// step because cell ids are allocated only when the skeleton is created.
func (c *Client) ReplaceDocumentContent(ctx context.Context, documentID string, blocks []Block) error {
	current, err := c.GetDocumentBlocks(ctx, documentID)
	if err != nil {
		return err
	}
	rootID := documentID
	childCount := 0
	for _, b := range current {
		if b.BlockType == BlockTypePage {
			if b.BlockID != "" {
				rootID = b.BlockID
			}
			childCount = len(b.Children)
			break
		}
	}

	for childCount > 0 {
		n := min(batchLimit, childCount)
		if err := c.BatchDeleteChildren(ctx, documentID, rootID, 0, n); err != nil {
			return err
		}
		childCount -= n
	}

	index := 0
	for start := 0; start < len(blocks); start += batchLimit {
		end := min(start+batchLimit, len(blocks))
		batch := blocks[start:end]
		created, err := c.AppendBlockChildren(ctx, documentID, rootID, index, batch)
		if err != nil {
			return err
		}
		index += len(batch)
		if err := c.fillTableCells(ctx, documentID, batch, created); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fillTableCells(ctx context.Context, documentID string, requested, created []Block) error {
	for i, req := range requested {
		if req.BlockType != BlockTypeTable || req.Table == nil || len(req.Table.Rows) == 0 {
			continue
		}
		if i >= len(created) {
			continue
		}
		cellIDs := created[i].Children
		if len(cellIDs) == 0 && created[i].Table != nil {
			cellIDs = created[i].Table.Cells
		}
		cols := req.Table.Property.ColumnSize
		if cols <= 0 {
			continue
		}
		for rowIdx, row := range req.Table.Rows {
			for colIdx, cell := range row {
				if cell.BlockType == 0 {
					continue
				}
				cellIdx := rowIdx*cols + colIdx
				if cellIdx >= len(cellIDs) {
					continue
				}
				if _, err := c.AppendBlockChildren(ctx, documentID, cellIDs[cellIdx], 0, []Block{cell}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
