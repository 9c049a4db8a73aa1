package main

import (
	"github.com/dustin/go-humanize"

	"github.com/siahsang/beatpost/internal/utils/functional"
	"github.com/siahsang/beatpost/models"
)

// postSummary is a post as list views show it.
type postSummary struct {
	models.Post
	Published string `json:"published"`
}

func summarize(posts []models.Post) []postSummary {
	return functional.Map(posts, func(p models.Post) postSummary {
		return postSummary{Post: p, Published: humanize.Time(p.CreatedAt.Time)}
	})
}
