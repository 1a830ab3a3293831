package models

import "time"

type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"content"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}
