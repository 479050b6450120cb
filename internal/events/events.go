// Package events publishes user lifecycle events of the auth service.
package events

import (
	"context"
	"time"
)

type Type string

const (
	UserRegistered Type = "user_registered"
	UserLoggedIn   Type = "user_logged_in"
	UserLoggedOut  Type = "user_logged_out"
)

type Event struct {
	Type   Type      `json:"type"`
	UserID uint      `json:"userId"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role,omitempty"`
	At     time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
