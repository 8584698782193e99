package service

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go/v7"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/config"
)

// Alert is the in-app message sent to one participant of a match.
type Alert struct {
	Type         string `json:"type"`
	MatchID      string `json:"match_id"`
	Status       string `json:"status"`
	ActingUserID uint64 `json:"acting_user_id"`
	Reason       string `json:"reason,omitempty"`
}

// Notifier delivers alerts to a single user.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, a Alert) error
}

// UserChannel is the PubNub channel a user's client subscribes to.
func UserChannel(userID uint64) string { return fmt.Sprintf("user-%d", userID) }

// PubNubNotifier publishes alerts on per-user PubNub channels.
type PubNubNotifier struct {
	publish func(channel string, msg any) error
	log     zerolog.Logger
}

func NewPubNubNotifier(cfg config.PubNubConfig, log zerolog.Logger) *PubNubNotifier {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId("ticket-exchange"))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pn := pubnub.NewPubNub(pnCfg)

	return &PubNubNotifier{
		publish: func(channel string, msg any) error {
			_, status, err := pn.Publish().
				Channel(channel).
				Message(msg).
				Execute()
			if err != nil {
				return err
			}
			if status.Error != nil {
				return status.Error
			}
			return nil
		},
		log: log,
	}
}

func (n *PubNubNotifier) Notify(_ context.Context, userID uint64, a Alert) error {
	ch := UserChannel(userID)
	if err := n.publish(ch, a); err != nil {
		return eris.Wrapf(err, "pubnub: publish %s to %s", a.Type, ch)
	}
	n.log.Debug().Str("channel", ch).Str("type", a.Type).Str("match_id", a.MatchID).Msg("alert sent")
	return nil
}

// LogNotifier only logs.  It stands in when PubNub is not configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, userID uint64, a Alert) error {
	n.Log.Info().
		Uint64("user_id", userID).
		Str("type", a.Type).
		Str("match_id", a.MatchID).
		Str("status", a.Status).
		Msg("alert")
	return nil
}

// NewNotifier picks PubNub when keys are configured.
func NewNotifier(cfg config.PubNubConfig, log zerolog.Logger) Notifier {
	if cfg.Enabled() {
		return NewPubNubNotifier(cfg, log)
	}
	return LogNotifier{Log: log}
}
