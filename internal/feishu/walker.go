package feishu

import (
	"context"
)

var documentObjTypes = map[string]bool{
	"doc":  true,
	"docx": true,
}

// WalkSpace enumerates every document node reachable from the space root,
// depth-first. Children are fetched only for nodes that report has_child.
// Callers must not rely on the order of the result.
func (c *Client) WalkSpace(ctx context.Context, spaceID string) ([]DocNode, error) {
	var docs []DocNode
	if err := c.walkNode(ctx, spaceID, "", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) walkNode(ctx context.Context, spaceID, parentNodeToken string, docs *[]DocNode) error {
	pageToken := ""
	for {
		nodes, nextToken, hasMore, err := c.listSpaceNodes(ctx, spaceID, parentNodeToken, pageToken)
		if err != nil {
			return err
		}
		for _, node := range nodes {
			if documentObjTypes[node.ObjType] {
				*docs = append(*docs, DocNode{
					NodeToken:  node.NodeToken,
					DocumentID: node.ObjToken,
					Title:      node.Title,
					ObjType:    node.ObjType,
				})
			}
			if node.HasChild {
				if err := c.walkNode(ctx, spaceID, node.NodeToken, docs); err != nil {
					return err
				}
			}
		}
		if !hasMore || nextToken == "" {
			return nil
		}
		pageToken = nextToken
	}
}
