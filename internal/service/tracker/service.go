package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/pkg/clock"
)

const (
	// TokenPrefix marks public Spark tokens.
	TokenPrefix = "spk_"

	DefaultMaxAttempts = 5
	DefaultTTL         = 30 * 24 * time.Hour

	// DefaultNotifyTimeout bounds one background delivery, retries included.
	DefaultNotifyTimeout = 30 * time.Second
)

// Notice is what the tracker hands to the notification collaborator.
type Notice struct {
	Transition  engagement.Transition
	Preferences domain.NotificationPreferences
	At          time.Time
}

// Service implements Spark lifecycle and engagement ingestion. All public
// methods are safe for concurrent use if the repository is.
type Service struct {
	repo        Repository
	model       engagement.Model
	clock       clock.Clock
	notifier    Notifier
	prefs       PreferenceSource
	maxAttempts int
	ttl         time.Duration

	asyncNotify   bool
	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

// NewService creates a tracker backed by repo and scored with model.
func NewService(repo Repository, model engagement.Model) *Service {
	return &Service{
		repo:        repo,
		model:       model,
		clock:       clock.System{},
		maxAttempts: DefaultMaxAttempts,
		ttl:         DefaultTTL,
	}
}

// SetNotifier wires the notification collaborator. prefs may be nil, in which
// case every owner gets domain.DefaultPreferences.
func (s *Service) SetNotifier(n Notifier, prefs PreferenceSource) {
	s.notifier = n
	s.prefs = prefs
}

// SetAsyncNotify moves notification delivery off the tracking call. Each
// delivery runs in the background under timeout; Wait drains them.
func (s *Service) SetAsyncNotify(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	s.asyncNotify = true
	s.notifyTimeout = timeout
}

// Wait blocks until background notification deliveries have finished.
func (s *Service) Wait() { s.inflight.Wait() }

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(c clock.Clock) { s.clock = c }

// SetMaxAttempts bounds the compare-and-swap retry loop.
func (s *Service) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// SetDefaultTTL sets the expiry applied to new Sparks that don't specify one.
func (s *Service) SetDefaultTTL(d time.Duration) {
	if d > 0 {
		s.ttl = d
	}
}

// Model returns the engagement model in use.
func (s *Service) Model() engagement.Model { return s.model }

// CreateInput holds the fields for creating a new Spark.
type CreateInput struct {
	OwnerID        string           `json:"owner_id"`
	ContentID      string           `json:"content_id"`
	TemplateID     string           `json:"template_id"`
	Recipient      domain.Recipient `json:"recipient"`
	SubjectLine    string           `json:"subject_line"`
	ContentPreview string           `json:"content_preview"`
	// ExpiresInDays overrides the default lifetime. Negative means never.
	ExpiresInDays int `json:"expires_in_days"`
}

// Create persists a new Spark in draft status with a fresh public token.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.EngagementRecord, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("owner_id is required")
	}

	now := s.clock.Now()
	rec := &domain.EngagementRecord{
		ID:                uuid.New().String(),
		Token:             NewToken(),
		OwnerID:           in.OwnerID,
		ContentID:         in.ContentID,
		TemplateID:        in.TemplateID,
		Recipient:         in.Recipient,
		SubjectLine:       in.SubjectLine,
		ContentPreview:    in.ContentPreview,
		EngagementQuality: domain.QualityLow,
		LeadTemperature:   domain.TemperatureCold,
		BuyingStage:       domain.StageAwareness,
		InterestSignals:   []string{},
		Status:            domain.StatusDraft,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	switch {
	case in.ExpiresInDays > 0:
		exp := now.AddDate(0, 0, in.ExpiresInDays)
		rec.ExpiresAt = &exp
	case in.ExpiresInDays == 0:
		exp := now.Add(s.ttl)
		rec.ExpiresAt = &exp
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create spark: %w", err)
	}
	log.Printf("[tracker.Service] Created spark %s for owner %s", rec.ID, rec.OwnerID)
	return rec, nil
}

// NewToken returns a random public Spark token.
func NewToken() string {
	return TokenPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Get returns a single record.
func (s *Service) Get(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	return s.repo.Get(ctx, id)
}

// GetByToken returns the record behind a public token.
func (s *Service) GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error) {
	return s.repo.GetByToken(ctx, token)
}

// List returns an owner's records matching the filter.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]domain.EngagementRecord, int, error) {
	return s.repo.List(ctx, ownerID, f)
}

// MarkSent moves a draft or active Spark to sent. Marking an already sent
// Spark is a no-op; anything further along is ErrInvalidTransition.
func (s *Service) MarkSent(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	return s.update(ctx, id, func(rec *domain.EngagementRecord, now time.Time) (bool, error) {
		switch rec.Status {
		case domain.StatusSent:
			return false, nil
		case domain.StatusDraft, domain.StatusActive:
			rec.Status = domain.StatusSent
			rec.SentAt = &now
			return true, nil
		default:
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, domain.StatusSent)
		}
	})
}

// Expire forces a Spark to expired. Converted Sparks cannot expire; an
// already expired Spark is returned unchanged.
func (s *Service) Expire(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	return s.update(ctx, id, expireFn)
}

func expireFn(rec *domain.EngagementRecord, now time.Time) (bool, error) {
	switch rec.Status {
	case domain.StatusExpired:
		return false, nil
	case domain.StatusConverted:
		return false, fmt.Errorf("%w: converted spark cannot expire", ErrInvalidTransition)
	}
	rec.Status = domain.StatusExpired
	if rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
		rec.ExpiresAt = &now
	}
	return true, nil
}

// ExpireDue expires up to limit records whose expiry has passed and returns
// the records it transitioned.
func (s *Service) ExpireDue(ctx context.Context, limit int) ([]domain.EngagementRecord, error) {
	due, err := s.repo.ListExpired(ctx, s.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	var out []domain.EngagementRecord
	for i := range due {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := s.update(ctx, due[i].ID, func(r *domain.EngagementRecord, now time.Time) (bool, error) {
			if !r.IsExpiredAt(now) || r.Status == domain.StatusConverted {
				return false, nil
			}
			return expireFn(r, now)
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			log.Printf("[tracker.Service] expire %s: %v", due[i].ID, err)
			continue
		}
		if rec.Status == domain.StatusExpired {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Track applies an engagement event to the record with the given id.
func (s *Service) Track(ctx context.Context, id string, ev domain.Event) (engagement.Transition, error) {
	return s.track(ctx, func(ctx context.Context) (*domain.EngagementRecord, error) {
		return s.repo.Get(ctx, id)
	}, ev)
}

// TrackByToken applies an engagement event to the record behind a public token.
func (s *Service) TrackByToken(ctx context.Context, token string, ev domain.Event) (engagement.Transition, error) {
	return s.track(ctx, func(ctx context.Context) (*domain.EngagementRecord, error) {
		return s.repo.GetByToken(ctx, token)
	}, ev)
}

func (s *Service) track(ctx context.Context, load func(context.Context) (*domain.EngagementRecord, error), ev domain.Event) (engagement.Transition, error) {
	if err := ev.Validate(); err != nil {
		return engagement.Transition{}, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return engagement.Transition{}, err
		}
		rec, err := load(ctx)
		if err != nil {
			return engagement.Transition{}, err
		}

		now := s.clock.Now()
		tr, err := s.model.Apply(rec, ev, now)
		if err != nil {
			return engagement.Transition{}, err
		}

		if tr.Expired && !tr.StatusChanged() {
			return tr, ErrExpired
		}

		err = s.repo.Put(ctx, tr.Next)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return engagement.Transition{}, fmt.Errorf("put spark %s: %w", rec.ID, err)
		}

		if tr.Expired {
			log.Printf("[tracker.Service] Spark %s expired on %s event", rec.ID, ev.Type)
			return tr, ErrExpired
		}
		s.maybeNotify(ctx, tr, now)
		return tr, nil
	}
	return engagement.Transition{}, fmt.Errorf("track %s after %d attempts: %w", ev.Type, s.maxAttempts, ErrConflict)
}

// maybeNotify runs the notification gate. Delivery failures are logged and
// never fail the event.
func (s *Service) maybeNotify(ctx context.Context, tr engagement.Transition, now time.Time) {
	if s.notifier == nil {
		return
	}
	prefs := domain.DefaultPreferences(tr.Next.OwnerID)
	if s.prefs != nil {
		p, err := s.prefs.Preferences(ctx, tr.Next.OwnerID)
		if err != nil {
			log.Printf("[tracker.Service] preferences for %s: %v (using defaults)", tr.Next.OwnerID, err)
		} else {
			prefs = p
		}
	}
	if !s.model.ShouldNotify(tr.Event, tr.Prior, tr.Next, prefs) {
		return
	}
	nt := Notice{Transition: tr, Preferences: prefs, At: now}
	if !s.asyncNotify {
		s.deliver(ctx, nt)
		return
	}

	// The caller keeps tr; the background copy must not share records with it.
	nt.Transition.Prior = tr.Prior.Clone()
	nt.Transition.Next = tr.Next.Clone()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		dctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		s.deliver(dctx, nt)
	}()
}

func (s *Service) deliver(ctx context.Context, nt Notice) {
	if err := s.notifier.Notify(ctx, nt); err != nil {
		log.Printf("[tracker.Service] notify spark %s: %v", nt.Transition.Next.ID, err)
	}
}

// Analytics summarizes an owner's Sparks created within the timeframe.
func (s *Service) Analytics(ctx context.Context, ownerID string, tf engagement.Timeframe) (engagement.Analytics, error) {
	since := tf.Since(s.clock.Now())
	var all []domain.EngagementRecord
	const page = 500
	for offset := 0; ; offset += page {
		recs, total, err := s.repo.List(ctx, ownerID, ListFilter{Since: since, Limit: page, Offset: offset})
		if err != nil {
			return engagement.Analytics{}, fmt.Errorf("list sparks: %w", err)
		}
		all = append(all, recs...)
		if len(recs) < page || len(all) >= total {
			break
		}
	}
	return engagement.Summarize(all), nil
}

// update runs a compare-and-swap loop for lifecycle changes. fn mutates the
// record in place and reports whether anything changed.
func (s *Service) update(ctx context.Context, id string, fn func(*domain.EngagementRecord, time.Time) (bool, error)) (*domain.EngagementRecord, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		changed, err := fn(rec, now)
		if err != nil {
			return nil, err
		}
		if !changed {
			return rec, nil
		}
		rec.UpdatedAt = now
		err = s.repo.Put(ctx, rec)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("put spark %s: %w", id, err)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("update %s after %d attempts: %w", id, s.maxAttempts, ErrConflict)
}
