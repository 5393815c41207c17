package models

// ChunkHit is one retrieved passage as returned by similarity search.
// Anything exposing these fields is a valid passage for the policy engine.
type ChunkHit struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}
