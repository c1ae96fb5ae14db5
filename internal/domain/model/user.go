package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the local study account; Username is unique.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	LeetcodeUsername string    `json:"leetcode_username"`
	CreatedAt        time.Time `json:"created_at"`
}
