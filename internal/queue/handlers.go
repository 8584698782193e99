package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/service"
)

// AuditLog appends one line per event to <dir>/match.log.
type AuditLog struct {
	dir string
	mu  sync.Mutex
}

func NewAuditLog(dir string) *AuditLog {
	if dir == "" {
		dir = "logs"
	}
	return &AuditLog{dir: dir}
}

// Path is the file the audit lines go to.
func (a *AuditLog) Path() string { return filepath.Join(a.dir, "match.log") }

func (a *AuditLog) Handle(_ context.Context, ev exchange.LifecycleEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return eris.Wrapf(err, "mkdir %s", a.dir)
	}
	f, err := os.OpenFile(a.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "open audit log")
	}
	defer f.Close()

	if _, err := f.WriteString(AuditLine(ev)); err != nil {
		return eris.Wrap(err, "write audit log")
	}
	return nil
}

// AuditLine renders ev in the single-line audit format.
func AuditLine(ev exchange.LifecycleEvent) string {
	participants := make([]string, len(ev.Participants))
	for i, id := range ev.Participants {
		participants[i] = fmt.Sprint(id)
	}
	line := fmt.Sprintf("[%s] %s | match_id=%s | status=%s | acting_user_id=%d | initiator_ticket=%s | matched_ticket=%s | participants=[%s]",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.Match.ID, ev.Match.Status, ev.ActingUserID,
		ev.Match.InitiatorTicketID, ev.Match.MatchedTicketID, strings.Join(participants, ","))
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	return line + "\n"
}

// Notify sends an alert to every participant of the match.
type Notify struct {
	Notifier service.Notifier
}

func (n Notify) Handle(ctx context.Context, ev exchange.LifecycleEvent) error {
	alert := service.Alert{
		Type:         string(ev.Type),
		MatchID:      ev.Match.ID,
		Status:       string(ev.Match.Status),
		ActingUserID: ev.ActingUserID,
		Reason:       ev.Reason,
	}
	var errs []error
	for _, uid := range ev.Participants {
		if err := n.Notifier.Notify(ctx, uid, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
