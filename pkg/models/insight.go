package models

import "time"

type InsightKind string

const (
	InsightSummary InsightKind = "summary"
	InsightAIBook  InsightKind = "aibook"
)

type InsightPreviewRequest struct {
	Kind        InsightKind `json:"kind" validate:"required,oneof=summary aibook"`
	ContactName string      `json:"contact_name" validate:"required,max=100"`
	Prompt      string      `json:"prompt" validate:"required,max=4000"`
}

type InsightItem struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type InsightPreview struct {
	Kind        InsightKind   `json:"kind"`
	Items       []InsightItem `json:"items"`
	Cached      bool          `json:"cached"`
	GeneratedAt time.Time     `json:"generated_at"`
}
