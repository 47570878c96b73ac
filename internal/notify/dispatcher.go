package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// Dispatcher builds notifications from tracker notices and fans them out to
// the delivery channels. It implements tracker.Notifier.
type Dispatcher struct {
	inbox    Inbox
	renderer *Renderer
	email    EmailSender
	push     Pusher
}

// NewDispatcher creates a dispatcher that always writes to inbox. Email and
// push are optional and wired with SetEmailSender / SetPusher.
func NewDispatcher(inbox Inbox, renderer *Renderer) *Dispatcher {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Dispatcher{inbox: inbox, renderer: renderer}
}

// SetEmailSender wires the email channel.
func (d *Dispatcher) SetEmailSender(s EmailSender) { d.email = s }

// SetPusher wires the push channel.
func (d *Dispatcher) SetPusher(p Pusher) { d.push = p }

var _ tracker.Notifier = (*Dispatcher)(nil)

// Notify builds the notification for a notice and delivers it. The in-app
// write must succeed; email and push failures are collected and returned
// after every channel has been attempted.
func (d *Dispatcher) Notify(ctx context.Context, nt tracker.Notice) error {
	n, err := d.Build(nt)
	if err != nil {
		return err
	}

	if err := d.inbox.Save(ctx, n); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	var errs []error
	for _, ch := range n.Channels {
		switch ch {
		case domain.ChannelEmail:
			if d.email == nil {
				continue
			}
			if err := d.email.SendNotification(ctx, nt.Preferences.Address, n); err != nil {
				errs = append(errs, fmt.Errorf("email: %w", err))
			}
		case domain.ChannelPush:
			if d.push == nil {
				continue
			}
			if err := d.push.Push(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("push: %w", err))
			}
		}
	}

	log.Printf("[notify.Dispatcher] %s/%s for spark %s via %v", n.Type, n.Priority, n.SparkID, n.Channels)
	return errors.Join(errs...)
}

// Build assembles the notification without delivering it.
func (d *Dispatcher) Build(nt tracker.Notice) (*domain.Notification, error) {
	tr := nt.Transition
	if tr.Prior == nil || tr.Next == nil {
		return nil, fmt.Errorf("notice without transition")
	}
	ev := tr.Event

	priority := engagement.Significance(ev, tr.Prior, tr.Next)
	ntype := engagement.NotificationTypeFor(ev.Type, priority)
	title, msg, err := d.renderer.Render(ntype, Vars(tr.Next, ev))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", ntype, err)
	}

	return &domain.Notification{
		ID:                 uuid.New().String(),
		OwnerID:            tr.Next.OwnerID,
		SparkID:            tr.Next.ID,
		Type:               ntype,
		Priority:           priority,
		Title:              title,
		Message:            msg,
		EventType:          ev.Type,
		LeadTemperature:    tr.Next.LeadTemperature,
		EngagementScore:    tr.Next.EngagementScore,
		RecommendedActions: engagement.RecommendedActions(ev.Type, priority),
		Channels:           engagement.Channels(nt.Preferences, priority, nt.At),
		CreatedAt:          nt.At,
	}, nil
}
