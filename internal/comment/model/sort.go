package model

type Sort string

const (
	SortCreatedAtAsc  Sort = "created_at_asc"
	SortCreatedAtDesc Sort = "created_at_desc"
	SortScoreDesc     Sort = "score_desc"
	SortRankDesc      Sort = "rank_desc"
)

// ThreadSort reports whether s orders replies inside a thread. SortRankDesc
// only applies to search results.
func (s Sort) ThreadSort() bool {
	switch s {
	case SortCreatedAtAsc, SortCreatedAtDesc, SortScoreDesc:
		return true
	}
	return false
}
