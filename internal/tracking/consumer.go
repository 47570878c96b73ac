package tracking

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/spark-tracker/internal/pkg/logger"
)

// Consumer drains the beacon queue into the tracker. Messages in a batch are
// applied in parallel; conflicts on the same Spark are resolved by the
// tracker's compare-and-swap retries.
type Consumer struct {
	sqsClient SQSAPI
	queueURL  string
	applier   Applier
	batchSize int32
	waitTime  int32
	workers   int
	backoff   time.Duration
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewConsumer creates a consumer. Zero values for batchSize, waitTime and
// workers select 10, 20 and 4.
func NewConsumer(sqsClient SQSAPI, queueURL string, applier Applier, batchSize, waitTime int32, workers int) *Consumer {
	if batchSize <= 0 || batchSize > 10 {
		batchSize = 10
	}
	if waitTime < 0 || waitTime > 20 {
		waitTime = 20
	}
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		applier:   applier,
		batchSize: batchSize,
		waitTime:  waitTime,
		workers:   workers,
		backoff:   5 * time.Second,
		done:      make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("SQS beacon consumer started (queue=%s, workers=%d)", c.queueURL, c.workers)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the in-flight batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.batchSize,
			WaitTimeSeconds:     c.waitTime,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("SQS receive error: %v", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
			continue
		}

		c.ProcessBatch(ctx, out.Messages)
	}
}

// ProcessBatch applies messages with at most workers in flight and returns
// the number deleted from the queue.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []types.Message) int {
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	deleted := 0

	for i := range msgs {
		msg := msgs[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()
			if c.handle(ctx, msg) {
				mu.Lock()
				deleted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return deleted
}

// handle applies one message and deletes it unless redelivery could help.
func (c *Consumer) handle(ctx context.Context, msg types.Message) bool {
	var m Message
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &m); err != nil {
		log.Printf("SQS bad message: %v", err)
		return c.deleteMessage(ctx, msg.ReceiptHandle)
	}

	if err := Apply(ctx, c.applier, m); err != nil {
		if !Permanent(err) {
			logger.Warn("beacon event will be redelivered", "token", m.Token, "event", string(m.Event.Type), "error", err.Error())
			return false
		}
		logger.Info("beacon event discarded", "token", m.Token, "event", string(m.Event.Type), "error", err.Error())
	}
	return c.deleteMessage(ctx, msg.ReceiptHandle)
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) bool {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		log.Printf("SQS delete error: %v", err)
		return false
	}
	return true
}
