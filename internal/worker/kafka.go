package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const commitTimeout = 5 * time.Second

// connects a producer and a consumer group to the jobs topic
func NewKafkaQueue(ctx context.Context, cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka queue needs at least one broker")
	}

	if err := ping(ctx, cfg.Brokers[0]); err != nil {
		return nil, err
	}

	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 1e6,
		}),
		concurrency: max(cfg.Concurrency, 1),
	}, nil
}

func ping(ctx context.Context, broker string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close() //nolint:errcheck // best-effort cleanup

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("failed to list kafka brokers: %w", err)
	}

	return nil
}

// publishes the job id keyed by itself
func (q *KafkaQueue) Dispatch(ctx context.Context, jobID string) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jobID),
		Value: []byte(jobID),
	})
	if err != nil {
		return fmt.Errorf("failed to publish generation: %w", err)
	}

	return nil
}

// reads ids from the consumer group and fans them out to the workers.
// offsets are committed after the handler returns, so a crash mid-job
// redelivers the id; the claim in Processor makes that harmless.
func (q *KafkaQueue) Run(ctx context.Context, handle Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	messages := make(chan kafka.Message, q.concurrency*2)

	g.Go(func() error {
		defer close(messages)

		for {
			msg, err := q.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				logger.ErrorErr(err, "failed to fetch generation message")

				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return nil
				}

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for msg := range messages {
				runHandler(ctx, handle, string(msg.Value))

				commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
				if err := q.reader.CommitMessages(commitCtx, msg); err != nil {
					logger.ErrorErr(err, "failed to commit generation message", "job_id", string(msg.Value))
				}
				cancel()
			}

			return nil
		})
	}

	return g.Wait()
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}
