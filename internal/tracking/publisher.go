package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/pkg/logger"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// Message is one beacon hit queued for the tracker.
type Message struct {
	Token      string       `json:"token"`
	Event      domain.Event `json:"event"`
	IPAddress  string       `json:"ip_address"`
	UserAgent  string       `json:"user_agent"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Sink accepts beacon messages. Publish never blocks the viewer on the
// tracker; failures are logged.
type Sink interface {
	Publish(ctx context.Context, msg Message)
}

// Applier applies an event to the Spark behind a token. *tracker.Service
// implements it.
type Applier interface {
	TrackByToken(ctx context.Context, token string, ev domain.Event) (engagement.Transition, error)
}

// SQSAPI is the subset of the SQS client used by the publisher and consumer.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher sends beacon messages to SQS in the background.
type Publisher struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

func (p *Publisher) Publish(_ context.Context, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ERROR marshal beacon message: %v", err)
		return
	}

	go func() {
		if err := p.send(body); err != nil {
			log.Printf("ERROR publishing to SQS: %v", err)
		}
	}()
}

func (p *Publisher) send(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

// InlineSink applies messages directly, for single-node deployments without
// a queue. It runs in the background so the viewer's request is not held.
type InlineSink struct {
	applier Applier
	timeout time.Duration
}

func NewInlineSink(a Applier) *InlineSink {
	return &InlineSink{applier: a, timeout: 10 * time.Second}
}

func (s *InlineSink) Publish(_ context.Context, msg Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := Apply(ctx, s.applier, msg); err != nil && !Permanent(err) {
			logger.Warn("beacon event dropped", "token", msg.Token, "event", string(msg.Event.Type), "error", err.Error())
		}
	}()
}

// Apply hands a message to the tracker.
func Apply(ctx context.Context, a Applier, msg Message) error {
	ev := msg.Event
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = msg.ReceivedAt
	}
	_, err := a.TrackByToken(ctx, msg.Token, ev)
	return err
}

// Permanent reports errors that redelivery cannot fix: unknown or expired
// Sparks and malformed events.
func Permanent(err error) bool {
	return errors.Is(err, tracker.ErrNotFound) ||
		errors.Is(err, tracker.ErrExpired) ||
		errors.Is(err, tracker.ErrInvalidEvent)
}
