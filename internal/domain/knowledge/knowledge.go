package knowledge

import "time"

// Metadata describes where a chunk came from.
type Metadata struct {
	SourceType string    `json:"sourceType"`
	SourceID   string    `json:"sourceId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Chunk is a retrieved piece of reference text.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float32  `json:"score"`
}

// Source types written by the ingestion path.
const (
	SourceMeeting  = "meeting"
	SourceDocument = "document"
	SourceAgent    = "agent"
)
