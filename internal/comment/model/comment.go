package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID identifies a comment. Servers send it either as a JSON string or as a
// JSON number; both decode to the same value.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id: %q is not an integer", n.String())
	}
	*id = ID(n.String())
	return nil
}

// IDFromInt64 formats a database key as an ID.
func IDFromInt64(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// Int64 parses a numeric ID.
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Ptr returns a pointer to a copy of id, for use as a parent reference.
func (id ID) Ptr() *ID { return &id }

type Comment struct {
	ID        ID        `json:"id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	ParentID  *ID       `json:"parent_id"`
	Text      string    `json:"text"`
	Score     int       `json:"score"`
	Removed   bool      `json:"removed"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRoot reports whether the comment has no parent reference.
func (c Comment) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// Parent returns the parent id, or "" for a root.
func (c Comment) Parent() ID {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

type SearchItem struct {
	ID        ID        `json:"id"`
	ThreadID  string    `json:"thread_id"`
	ParentID  *ID       `json:"parent_id"`
	Snippet   string    `json:"snippet"`
	Rank      float64   `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchPage struct {
	Items []SearchItem `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}
