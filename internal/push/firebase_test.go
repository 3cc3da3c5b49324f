package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	got  *messaging.MulticastMessage
	resp *messaging.BatchResponse
	err  error
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.got = m
	return f.resp, f.err
}

type fakeTokens struct {
	tokens  []string
	removed []string
}

func (f *fakeTokens) TokensForUser(context.Context, int64) ([]string, error) { return f.tokens, nil }
func (f *fakeTokens) Remove(_ context.Context, token string) error {
	f.removed = append(f.removed, token)
	return nil
}

func TestPushSkipsUsersWithoutDevices(t *testing.T) {
	sender := &fakeSender{}
	p := FirebasePusher{Client: sender, Tokens: &fakeTokens{}}
	require.NoError(t, p.Push(context.Background(), 7, "t", "b", nil))
	assert.Nil(t, sender.got)
}

func TestPushSendsToAllTokens(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		Responses: []*messaging.SendResponse{{Success: true}, {Success: true}},
	}}
	tokens := &fakeTokens{tokens: []string{"a", "b"}}
	p := FirebasePusher{Client: sender, Tokens: tokens}

	require.NoError(t, p.Push(context.Background(), 7, "Task", "New task", map[string]string{"actionType": "open_task"}))
	require.NotNil(t, sender.got)
	assert.Equal(t, []string{"a", "b"}, sender.got.Tokens)
	assert.Equal(t, "Task", sender.got.Notification.Title)
	assert.Equal(t, "7", sender.got.Data["userId"])
	assert.Equal(t, "open_task", sender.got.Data["actionType"])
	assert.Empty(t, tokens.removed)
}

func TestPushReturnsTransportError(t *testing.T) {
	sender := &fakeSender{err: errors.New("unavailable")}
	p := FirebasePusher{Client: sender, Tokens: &fakeTokens{tokens: []string{"a"}}}
	assert.Error(t, p.Push(context.Background(), 1, "t", "b", nil))
}
