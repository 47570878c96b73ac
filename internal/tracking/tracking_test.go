package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/pkg/clock"
	"github.com/ignite/spark-tracker/internal/repository/memory"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

var t0 = time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (s *recordingSink) Publish(_ context.Context, m Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, m)
	s.mu.Unlock()
}

func newHandler(hosts ...string) (*Handler, *recordingSink) {
	sink := &recordingSink{}
	h := NewHandler(sink, hosts)
	h.SetClock(clock.NewFixed(t0))
	return h, sink
}

func TestHandlePixel(t *testing.T) {
	h, sink := newHandler()
	req := httptest.NewRequest(http.MethodGet, "/s/spk_abc/pixel.gif?rv=1", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Mobile")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, pixelGIF, rec.Body.Bytes())

	require.Len(t, sink.msgs, 1)
	m := sink.msgs[0]
	assert.Equal(t, "spk_abc", m.Token)
	assert.Equal(t, domain.EventView, m.Event.Type)
	assert.True(t, m.Event.ReturnVisit)
	assert.Equal(t, "mobile", m.Event.DeviceType)
	assert.Equal(t, "203.0.113.9", m.IPAddress)
	assert.Equal(t, t0, m.ReceivedAt)
}

func TestHandleEvent(t *testing.T) {
	h, sink := newHandler()
	body := `{"type":"scroll","percentage":80,"buying_signals":["pricing_inquiry"]}`
	req := httptest.NewRequest(http.MethodPost, "/s/spk_abc/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, domain.EventScroll, sink.msgs[0].Event.Type)
	assert.Equal(t, 80.0, sink.msgs[0].Event.Percentage)
	assert.Equal(t, []string{"pricing_inquiry"}, sink.msgs[0].Event.BuyingSignals)
	assert.Equal(t, "desktop", sink.msgs[0].Event.DeviceType)
}

func TestHandleEvent_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"bad json":     `{"type":`,
		"unknown type": `{"type":"hover"}`,
		"scroll range": `{"type":"scroll","percentage":140}`,
	} {
		t.Run(name, func(t *testing.T) {
			h, sink := newHandler()
			req := httptest.NewRequest(http.MethodPost, "/s/spk_abc/events", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sink.msgs)
		})
	}
}

func TestHandleClick(t *testing.T) {
	h, sink := newHandler("Example.com")
	req := httptest.NewRequest(http.MethodGet, "/s/spk_abc/click?u=https%3A%2F%2Fexample.com%2Fpricing", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://example.com/pricing", rec.Header().Get("Location"))
	require.Len(t, sink.msgs, 1)
	assert.Equal(t, domain.EventClick, sink.msgs[0].Event.Type)
	assert.Equal(t, "https://example.com/pricing", sink.msgs[0].Event.Target)
}

func TestHandleClick_Rejects(t *testing.T) {
	for name, target := range map[string]string{
		"missing":  "",
		"scheme":   "javascript:alert(1)",
		"host":     "https://evil.example.net/",
		"relative": "/pricing",
	} {
		t.Run(name, func(t *testing.T) {
			h, sink := newHandler("example.com")
			req := httptest.NewRequest(http.MethodGet, "/s/spk_abc/click?u="+target, nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sink.msgs)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := newHandler()
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDetectDevice(t *testing.T) {
	assert.Equal(t, "tablet", detectDevice("Mozilla/5.0 (iPad; CPU OS 17_0) Mobile/15E148"))
	assert.Equal(t, "mobile", detectDevice("Mozilla/5.0 (Linux; Android 14)"))
	assert.Equal(t, "desktop", detectDevice("Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)"))
}

// fakeSQS serves queued messages once and records deletes and sends.
type fakeSQS struct {
	mu      sync.Mutex
	pending []types.Message
	sent    []string
	deleted []string
	sendErr error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	n := int(in.MaxNumberOfMessages)
	if n > len(f.pending) {
		n = len(f.pending)
	}
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	f.mu.Unlock()
	if len(batch) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func queued(t *testing.T, handle string, m Message) types.Message {
	t.Helper()
	body, err := json.Marshal(m)
	require.NoError(t, err)
	return types.Message{Body: aws.String(string(body)), ReceiptHandle: aws.String(handle)}
}

func newTracker(t *testing.T) (*tracker.Service, *domain.EngagementRecord) {
	t.Helper()
	svc := tracker.NewService(memory.NewSparkRepo(), engagement.DefaultModel())
	svc.SetClock(clock.NewFixed(t0))
	svc.SetMaxAttempts(20)
	rec, err := svc.Create(context.Background(), tracker.CreateInput{OwnerID: "rep-1"})
	require.NoError(t, err)
	rec, err = svc.MarkSent(context.Background(), rec.ID)
	require.NoError(t, err)
	return svc, rec
}

func TestConsumer_ProcessBatch(t *testing.T) {
	svc, rec := newTracker(t)
	fake := &fakeSQS{}
	c := NewConsumer(fake, "q", svc, 10, 0, 3)

	var msgs []types.Message
	for i := 0; i < 6; i++ {
		msgs = append(msgs, queued(t, "click-"+string(rune('a'+i)), Message{Token: rec.Token, Event: domain.Event{Type: domain.EventClick}}))
	}
	msgs = append(msgs,
		types.Message{Body: aws.String("{not json"), ReceiptHandle: aws.String("poison")},
		queued(t, "unknown", Message{Token: "spk_missing", Event: domain.Event{Type: domain.EventView}}),
		queued(t, "invalid", Message{Token: rec.Token, Event: domain.Event{Type: "hover"}}),
	)

	deleted := c.ProcessBatch(context.Background(), msgs)
	assert.Equal(t, 9, deleted)
	assert.ElementsMatch(t, []string{"click-a", "click-b", "click-c", "click-d", "click-e", "click-f", "poison", "unknown", "invalid"}, fake.deleted)

	got, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Clicks, "every parallel click lands")
}

type failingApplier struct{ err error }

func (f failingApplier) TrackByToken(context.Context, string, domain.Event) (engagement.Transition, error) {
	return engagement.Transition{}, f.err
}

func TestConsumer_TransientErrorsAreRedelivered(t *testing.T) {
	fake := &fakeSQS{}
	c := NewConsumer(fake, "q", failingApplier{err: tracker.ErrConflict}, 0, 0, 0)
	msg := queued(t, "h1", Message{Token: "spk_x", Event: domain.Event{Type: domain.EventView}})

	assert.Equal(t, 0, c.ProcessBatch(context.Background(), []types.Message{msg}))
	assert.Empty(t, fake.deleted)
}

func TestConsumer_StartStop(t *testing.T) {
	svc, rec := newTracker(t)
	fake := &fakeSQS{pending: []types.Message{
		queued(t, "h1", Message{Token: rec.Token, Event: domain.Event{Type: domain.EventView}}),
	}}
	c := NewConsumer(fake, "q", svc, 10, 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.deleted) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	c.Stop()

	got, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Opens)
	assert.Equal(t, domain.StatusViewed, got.Status)
}

func TestPublisher(t *testing.T) {
	fake := &fakeSQS{}
	p := NewPublisher(fake, "q")
	p.Publish(context.Background(), Message{Token: "spk_1", Event: domain.Event{Type: domain.EventShare}, ReceivedAt: t0})

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.sent) == 1
	}, time.Second, 5*time.Millisecond)

	var m Message
	require.NoError(t, json.Unmarshal([]byte(fake.sent[0]), &m))
	assert.Equal(t, "spk_1", m.Token)
	assert.Equal(t, domain.EventShare, m.Event.Type)
}

func TestPublisher_SendError(t *testing.T) {
	fake := &fakeSQS{sendErr: errors.New("throttled")}
	assert.ErrorContains(t, NewPublisher(fake, "q").send([]byte(`{}`)), "throttled")
}

func TestInlineSink(t *testing.T) {
	svc, rec := newTracker(t)
	NewInlineSink(svc).Publish(context.Background(), Message{Token: rec.Token, Event: domain.Event{Type: domain.EventView}})

	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), rec.ID)
		return err == nil && got.Opens == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPermanent(t *testing.T) {
	assert.True(t, Permanent(tracker.ErrNotFound))
	assert.True(t, Permanent(tracker.ErrExpired))
	assert.True(t, Permanent(domain.ErrInvalidEvent))
	assert.False(t, Permanent(tracker.ErrConflict))
	assert.False(t, Permanent(errors.New("network")))
}

func TestApply_OversizedDurationIsPermanent(t *testing.T) {
	svc, rec := newTracker(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := Apply(ctx, svc, Message{Token: rec.Token, Event: domain.Event{Type: domain.EventTimeSpent, Seconds: 1.7e308}, ReceivedAt: t0})
		require.Error(t, err)
		assert.True(t, Permanent(err))
	}

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.TimeSpentSeconds)
	assert.Equal(t, rec.Version, got.Version)
}
