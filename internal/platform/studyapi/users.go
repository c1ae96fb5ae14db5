package studyapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/goccy/go-json"
)

// decodeUser reads a user object. The service spells the id key as either
// "id" or "ID" depending on the endpoint.
func decodeUser(data []byte) (*model.User, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	u := &model.User{}
	for _, key := range []string{"id", "ID", "Id"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var id flexID
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		if id != "" {
			u.ID = string(id)
			break
		}
	}
	for key, dst := range map[string]*string{"username": &u.Username, "leetcode_username": &u.LeetcodeUsername} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		if v != nil {
			*dst = *v
		}
	}
	return u, nil
}

// FindByUsername returns common.ErrNotFound when the service has no such user,
// either as a 404 or as a 200 with empty data.
func (c *Client) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/users?username="+url.QueryEscape(username), nil, "")
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusNotFound:
		return nil, common.ErrNotFound
	case resp.status != http.StatusOK:
		return nil, unexpectedStatus("find user", resp)
	}

	env, err := decodeEnvelope(resp.body)
	if err != nil {
		return nil, fmt.Errorf("find user: decode: %v: %w", err, common.ErrRemoteService)
	}
	if d := string(env.Data); d == "" || d == "null" || d == "{}" || d == "[]" {
		return nil, common.ErrNotFound
	}
	u, err := decodeUser(env.Data)
	if err != nil {
		return nil, fmt.Errorf("find user: decode data: %v: %w", err, common.ErrRemoteService)
	}
	if u.ID == "" {
		return nil, common.ErrNotFound
	}
	if u.Username == "" {
		u.Username = username
	}
	return u, nil
}

type createUserRequest struct {
	Username         string `json:"username"`
	LeetcodeUsername string `json:"leetcode_username"`
}

// Create registers user with the service and fills in the assigned id.
func (c *Client) Create(ctx context.Context, user *model.User) error {
	resp, err := c.call(ctx, http.MethodPost, "/api/users", createUserRequest{
		Username:         user.Username,
		LeetcodeUsername: user.LeetcodeUsername,
	}, "")
	if err != nil {
		return err
	}
	switch resp.status {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return fmt.Errorf("user %q: %w", user.Username, common.ErrConflict)
	default:
		return unexpectedStatus("create user", resp)
	}

	env, err := decodeEnvelope(resp.body)
	if err != nil {
		return fmt.Errorf("create user: decode: %v: %w", err, common.ErrRemoteService)
	}
	created, err := decodeUser(env.Data)
	if err != nil {
		return fmt.Errorf("create user: decode data: %v: %w", err, common.ErrRemoteService)
	}
	if created.ID == "" {
		return fmt.Errorf("create user: response carried no id: %w", common.ErrRemoteService)
	}
	user.ID = created.ID
	return nil
}
