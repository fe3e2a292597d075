package model

// CommentPathItem is one step of the chain from a root comment down to a
// target comment.
type CommentPathItem struct {
	ID       ID     `json:"id"`
	ParentID *ID    `json:"parent_id"`
	Text     string `json:"text"`
	Index    int    `json:"index"`
}
