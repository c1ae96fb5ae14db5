package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

// DifficultyFromLevel maps the remote numeric level (1..3) to its label.
func DifficultyFromLevel(level int) (ProblemDifficulty, bool) {
	switch level {
	case 1:
		return DifficultyEasy, true
	case 2:
		return DifficultyMedium, true
	case 3:
		return DifficultyHard, true
	}
	return "", false
}

// Rank orders difficulties Easy < Medium < Hard; unknown values rank 0.
func (d ProblemDifficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	}
	return 0
}

// Problem is one catalog entry. ID is assigned by the remote catalog and never
// changes for a given TitleSlug.
type Problem struct {
	ID               int               `json:"id"`
	FrontendID       string            `json:"frontend_id"`
	Title            string            `json:"title"`
	TitleSlug        string            `json:"title_slug"`
	Difficulty       ProblemDifficulty `json:"difficulty"`
	IsPaidOnly       bool              `json:"is_paid_only"`
	Content          string            `json:"content"`
	TopicTags        []TopicTag        `json:"topic_tags"`
	ExampleTestcases string            `json:"example_testcases"`
	SimilarQuestions []SimilarQuestion `json:"similar_questions"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type TopicTag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type SimilarQuestion struct {
	Title      string `json:"title"`
	TitleSlug  string `json:"titleSlug"`
	Difficulty string `json:"difficulty,omitempty"`
}

// CatalogStub is one row of the remote catalog list.
type CatalogStub struct {
	RemoteID  int    `json:"remote_id"`
	TitleSlug string `json:"title_slug"`
	PaidOnly  bool   `json:"paid_only"`
}

// TopicSlugs returns the distinct, non-empty tag slugs in order of first appearance.
func (p *Problem) TopicSlugs() []string {
	seen := make(map[string]struct{}, len(p.TopicTags))
	slugs := make([]string, 0, len(p.TopicTags))
	for _, t := range p.TopicTags {
		if t.Slug == "" {
			continue
		}
		if _, ok := seen[t.Slug]; ok {
			continue
		}
		seen[t.Slug] = struct{}{}
		slugs = append(slugs, t.Slug)
	}
	return slugs
}
