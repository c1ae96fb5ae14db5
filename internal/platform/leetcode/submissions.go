package leetcode

import (
	"context"
	"fmt"
	"strings"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/goccy/go-json"
)

const recentAcQuery = `
query recentAcSubmissions($username: String!, $limit: Int!) {
  recentAcSubmissionList(username: $username, limit: $limit) {
    id
    title
    titleSlug
    timestamp
  }
}`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type recentAcResponse struct {
	Data struct {
		RecentAcSubmissionList []struct {
			ID        flexString `json:"id"`
			Title     string     `json:"title"`
			TitleSlug string     `json:"titleSlug"`
			Timestamp flexString `json:"timestamp"`
		} `json:"recentAcSubmissionList"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchRecentAccepted returns at most limit accepted submissions, newest first.
// A user without accepted submissions yields an empty slice and no error.
func (c *Client) FetchRecentAccepted(ctx context.Context, username string, limit int) ([]model.RemoteSubmission, error) {
	req := graphQLRequest{
		Query:     recentAcQuery,
		Variables: map[string]interface{}{"username": username, "limit": limit},
	}
	body, status, err := c.doPOST(ctx, c.cfg.GraphQLURL, req)
	if err != nil {
		return nil, fmt.Errorf("recent submissions for %s: %v: %w", username, err, common.ErrRemoteUnavailable)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("recent submissions for %s: HTTP %d: %s: %w", username, status, snippet(body), common.ErrRemoteUnavailable)
	}

	var resp recentAcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("recent submissions for %s: decode: %v: %w", username, err, common.ErrRemoteUnavailable)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("recent submissions for %s: graphql: %s: %w", username, strings.Join(msgs, "; "), common.ErrRemoteUnavailable)
	}

	list := resp.Data.RecentAcSubmissionList
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	subs := make([]model.RemoteSubmission, 0, len(list))
	for _, item := range list {
		ts, err := item.Timestamp.Int64()
		if err != nil {
			return nil, fmt.Errorf("recent submissions for %s: submission %s timestamp %q: %w", username, item.ID, item.Timestamp, common.ErrRemoteUnavailable)
		}
		subs = append(subs, model.RemoteSubmission{
			ID:        string(item.ID),
			Title:     item.Title,
			TitleSlug: item.TitleSlug,
			Timestamp: ts,
		})
	}
	return subs, nil
}
