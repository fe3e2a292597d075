package model

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the entries of a comment tree.
type Kind uint8

const (
	KindComment Kind = iota
	KindMore
)

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindMore:
		return "more"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindComment, KindMore:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown node kind %d", uint8(k))
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "comment":
		*k = KindComment
	case "more":
		*k = KindMore
	default:
		return fmt.Errorf("unknown node kind %q", string(b))
	}
	return nil
}

// MoreMarker stands in for replies the server has not sent yet.
type MoreMarker struct {
	ParentID *ID    `json:"parent_id"`
	Token    string `json:"token"`
	Count    int    `json:"count,omitempty"`
}

// Parent returns the parent id, or "" for a root-level marker.
func (m MoreMarker) Parent() ID {
	if m.ParentID == nil {
		return ""
	}
	return *m.ParentID
}

// Record is one entry of a flat server response. Kind selects whether the
// comment fields or the marker fields are meaningful.
type Record struct {
	Kind Kind `json:"kind"`
	Comment
	Token string `json:"token,omitempty"`
	Count int    `json:"count,omitempty"`
}

// CommentRecord wraps c as a comment-kind record.
func CommentRecord(c Comment) Record {
	return Record{Kind: KindComment, Comment: c}
}

// MoreRecord builds a continuation record under parent ("" for the root level).
func MoreRecord(threadID string, parent ID, token string, count int) Record {
	r := Record{Kind: KindMore, Token: token, Count: count}
	r.ThreadID = threadID
	if parent != "" {
		r.ParentID = parent.Ptr()
	}
	return r
}

// Marker returns the continuation marker described by a more-kind record.
func (r Record) Marker() MoreMarker {
	return MoreMarker{ParentID: r.ParentID, Token: r.Token, Count: r.Count}
}

// CommentNode is a comment with its materialized replies. A leaf carries an
// empty, non-nil Replies slice.
type CommentNode struct {
	Comment
	Replies []Node `json:"replies"`
}

// Node is either a comment or a continuation marker, selected by Kind.
type Node struct {
	Kind    Kind
	Comment *CommentNode
	More    *MoreMarker
}

func CommentOf(n *CommentNode) Node { return Node{Kind: KindComment, Comment: n} }

func MoreOf(m *MoreMarker) Node { return Node{Kind: KindMore, More: m} }

// ParentID returns the parent reference of whichever variant n holds.
func (n Node) ParentID() *ID {
	switch n.Kind {
	case KindComment:
		if n.Comment != nil {
			return n.Comment.ParentID
		}
	case KindMore:
		if n.More != nil {
			return n.More.ParentID
		}
	}
	return nil
}

type commentJSON struct {
	Kind Kind `json:"kind"`
	*CommentNode
}

type moreJSON struct {
	Kind Kind `json:"kind"`
	*MoreMarker
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindComment:
		if n.Comment == nil {
			return nil, fmt.Errorf("comment node without payload")
		}
		return json.Marshal(commentJSON{Kind: KindComment, CommentNode: n.Comment})
	case KindMore:
		if n.More == nil {
			return nil, fmt.Errorf("more node without payload")
		}
		return json.Marshal(moreJSON{Kind: KindMore, MoreMarker: n.More})
	}
	return nil, fmt.Errorf("unknown node kind %d", uint8(n.Kind))
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	switch head.Kind {
	case KindMore:
		var m MoreMarker
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		*n = MoreOf(&m)
	default:
		var c CommentNode
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		if c.Replies == nil {
			c.Replies = []Node{}
		}
		*n = CommentOf(&c)
	}
	return nil
}

// Tree is the ordered root level of a thread.
type Tree []Node
