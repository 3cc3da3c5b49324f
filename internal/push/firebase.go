// Package push delivers notifications to mobile devices through Firebase
// Cloud Messaging.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"firebase.google.com/go/v4/messaging"
)

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type tokenStore interface {
	TokensForUser(ctx context.Context, userID int64) ([]string, error)
	Remove(ctx context.Context, token string) error
}

// FirebasePusher fans a message out to every registered device of a user.
type FirebasePusher struct {
	Client multicastSender
	Tokens tokenStore
	Logger *slog.Logger
}

func (p FirebasePusher) Push(ctx context.Context, userID int64, title, body string, data map[string]string) error {
	tokens, err := p.Tokens.TokensForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	payload := map[string]string{"userId": strconv.FormatInt(userID, 10)}
	for k, v := range data {
		payload[k] = v
	}
	resp, err := p.Client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         payload,
	})
	if err != nil {
		return fmt.Errorf("send multicast: %w", err)
	}
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if messaging.IsUnregistered(r.Error) {
			if err := p.Tokens.Remove(ctx, tokens[i]); err != nil && p.Logger != nil {
				p.Logger.Warn("remove stale device token", "user_id", userID, "err", err)
			}
			continue
		}
		if p.Logger != nil {
			p.Logger.Warn("push delivery failed", "user_id", userID, "err", r.Error)
		}
	}
	return nil
}

// Noop is used when Firebase is not configured.
type Noop struct{}

func (Noop) Push(context.Context, int64, string, string, map[string]string) error { return nil }
