package leetcode

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
)

type catalogListPayload struct {
	StatStatusPairs []struct {
		Stat struct {
			QuestionID flexString `json:"question_id"`
			TitleSlug  string     `json:"question__title_slug"`
		} `json:"stat"`
		PaidOnly bool `json:"paid_only"`
	} `json:"stat_status_pairs"`
}

// FetchCatalogList returns the catalog stubs in remote order. Rows without a
// numeric id or a well-formed slug are dropped and counted in rejected.
func (c *Client) FetchCatalogList(ctx context.Context) (stubs []model.CatalogStub, rejected int, err error) {
	body, status, err := c.doGET(ctx, c.cfg.CatalogListURL)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog list: %v: %w", err, common.ErrRemoteUnavailable)
	}
	if !isSuccess(status) {
		return nil, 0, fmt.Errorf("catalog list: HTTP %d: %s: %w", status, snippet(body), common.ErrRemoteUnavailable)
	}

	var payload catalogListPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, fmt.Errorf("catalog list: decode: %v: %w", err, common.ErrRemoteUnavailable)
	}

	stubs = make([]model.CatalogStub, 0, len(payload.StatStatusPairs))
	for _, pair := range payload.StatStatusPairs {
		id, err := pair.Stat.QuestionID.Int()
		if err != nil || !slug.IsSlug(pair.Stat.TitleSlug) {
			rejected++
			continue
		}
		stubs = append(stubs, model.CatalogStub{
			RemoteID:  id,
			TitleSlug: pair.Stat.TitleSlug,
			PaidOnly:  pair.PaidOnly,
		})
	}
	return stubs, rejected, nil
}

type detailPayload struct {
	QuestionID         flexString      `json:"questionId"`
	QuestionFrontendID flexString      `json:"questionFrontendId"`
	QuestionTitle      string          `json:"questionTitle"`
	TitleSlug          string          `json:"titleSlug"`
	Difficulty         json.RawMessage `json:"difficulty"`
	IsPaidOnly         bool            `json:"isPaidOnly"`
	Question           *string         `json:"question"`
	TopicTags          []struct {
		ID   flexString `json:"id"`
		Name string     `json:"name"`
		Slug string     `json:"slug"`
	} `json:"topicTags"`
	ExampleTestcases *string         `json:"exampleTestcases"`
	SimilarQuestions json.RawMessage `json:"similarQuestions"`
}

// FetchDetail fetches one entry. A non-2xx status or transport failure is
// common.ErrTransient; a 2xx payload without questionId is common.ErrIncomplete.
func (c *Client) FetchDetail(ctx context.Context, titleSlug string) (*model.Problem, error) {
	body, status, err := c.doGET(ctx, c.cfg.DetailEndpoint(titleSlug))
	if err != nil {
		return nil, fmt.Errorf("detail %s: %v: %w", titleSlug, err, common.ErrTransient)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("detail %s: HTTP %d: %w", titleSlug, status, common.ErrTransient)
	}
	return decodeDetail(titleSlug, body)
}

func decodeDetail(titleSlug string, body []byte) (*model.Problem, error) {
	var payload detailPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("detail %s: decode: %v: %w", titleSlug, err, common.ErrIncomplete)
	}
	if payload.QuestionID == "" {
		return nil, fmt.Errorf("detail %s: missing questionId: %w", titleSlug, common.ErrIncomplete)
	}
	id, err := payload.QuestionID.Int()
	if err != nil {
		return nil, fmt.Errorf("detail %s: questionId %q: %w", titleSlug, payload.QuestionID, common.ErrIncomplete)
	}

	similar, err := decodeSimilarQuestions(payload.SimilarQuestions)
	if err != nil {
		return nil, fmt.Errorf("detail %s: similarQuestions: %v: %w", titleSlug, err, common.ErrIncomplete)
	}

	p := &model.Problem{
		ID:               id,
		FrontendID:       string(payload.QuestionFrontendID),
		Title:            payload.QuestionTitle,
		TitleSlug:        payload.TitleSlug,
		Difficulty:       decodeDifficulty(payload.Difficulty),
		IsPaidOnly:       payload.IsPaidOnly,
		TopicTags:        make([]model.TopicTag, 0, len(payload.TopicTags)),
		SimilarQuestions: similar,
	}
	if p.TitleSlug == "" {
		p.TitleSlug = titleSlug
	}
	if payload.Question != nil {
		p.Content = *payload.Question
	}
	if payload.ExampleTestcases != nil {
		p.ExampleTestcases = *payload.ExampleTestcases
	}
	for _, t := range payload.TopicTags {
		tag := model.TopicTag{ID: string(t.ID), Name: t.Name, Slug: t.Slug}
		if tag.Slug == "" && tag.Name != "" {
			tag.Slug = slug.Make(tag.Name)
		}
		p.TopicTags = append(p.TopicTags, tag)
	}
	return p, nil
}

// decodeDifficulty accepts the numeric level (1..3, bare or quoted) or a label.
func decodeDifficulty(raw json.RawMessage) model.ProblemDifficulty {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return ""
	}
	if level, err := strconv.Atoi(s); err == nil {
		if d, ok := model.DifficultyFromLevel(level); ok {
			return d
		}
	}
	for _, d := range []model.ProblemDifficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		if strings.EqualFold(s, string(d)) {
			return d
		}
	}
	return model.ProblemDifficulty(s)
}

// decodeSimilarQuestions handles an absent field, a JSON array, or a JSON
// array encoded inside a string.
func decodeSimilarQuestions(raw json.RawMessage) ([]model.SimilarQuestion, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []model.SimilarQuestion{}, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		if strings.TrimSpace(inner) == "" {
			return []model.SimilarQuestion{}, nil
		}
		raw = json.RawMessage(inner)
	}
	out := []model.SimilarQuestion{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
