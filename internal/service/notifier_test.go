package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-exchange/internal/config"
)

func TestPubNubNotifierChannel(t *testing.T) {
	var gotChannel string
	var gotMsg any
	n := &PubNubNotifier{
		publish: func(channel string, msg any) error {
			gotChannel, gotMsg = channel, msg
			return nil
		},
		log: zerolog.Nop(),
	}

	a := Alert{Type: "match_completed", MatchID: "m-1", Status: "completed", ActingUserID: 2}
	require.NoError(t, n.Notify(context.Background(), 7, a))
	assert.Equal(t, "user-7", gotChannel)
	assert.Equal(t, a, gotMsg)
}

func TestPubNubNotifierWrapsErrors(t *testing.T) {
	n := &PubNubNotifier{
		publish: func(string, any) error { return errors.New("403 forbidden") },
		log:     zerolog.Nop(),
	}
	err := n.Notify(context.Background(), 3, Alert{Type: "match_cancelled"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-3")
	assert.Contains(t, err.Error(), "403 forbidden")
}

func TestNewNotifierFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(config.PubNubConfig{}, zerolog.New(&buf))
	require.IsType(t, LogNotifier{}, n)

	require.NoError(t, n.Notify(context.Background(), 4, Alert{Type: "match_initiated", MatchID: "m-9"}))
	assert.Contains(t, buf.String(), `"user_id":4`)
	assert.Contains(t, buf.String(), `"match_id":"m-9"`)

	pn := NewNotifier(config.PubNubConfig{PublishKey: "pub", SubscribeKey: "sub"}, zerolog.Nop())
	assert.IsType(t, &PubNubNotifier{}, pn)
}
