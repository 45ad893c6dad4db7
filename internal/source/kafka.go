package source

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/receiver"
	"github.com/nixlim/fleetwatch/internal/state"
)

// fetchRetryDelay is the pause after a failed fetch.
const fetchRetryDelay = 50 * time.Millisecond

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer stores events read from a Kafka topic as part of a
// consumer group.
type KafkaConsumer struct {
	reader messageReader
	store  state.Store
	logger receiver.Logger
}

func NewKafkaConsumer(cfg config.KafkaConfig, store state.Store, logger receiver.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.BrokerList(),
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		StartOffset:     kafka.LastOffset,
		CommitInterval:  time.Second,
		MinBytes:        1,
		MaxBytes:        10e6,
		ReadLagInterval: -1,
	})
	return &KafkaConsumer{reader: r, store: store, logger: logger}
}

// Run consumes until ctx is cancelled. Messages that cannot be decoded are
// logged and committed so they do not block the partition.
func (c *KafkaConsumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Printf("ERROR: kafka fetch: %v", err)
			time.Sleep(fetchRetryDelay)
			continue
		}

		c.handleMessage(msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Printf("ERROR: kafka commit (partition=%d offset=%d): %v", msg.Partition, msg.Offset, err)
		}
	}
}

func (c *KafkaConsumer) handleMessage(msg kafka.Message) int {
	evts, err := Decode(msg.Value)
	if err != nil {
		log.Printf("WARNING: dropping kafka message (partition=%d offset=%d): %v", msg.Partition, msg.Offset, err)
		return 0
	}
	// The message key names the device when records omit it.
	if key := string(msg.Key); key != "" {
		for i := range evts {
			if evts[i].Device == "" {
				evts[i].Device = key
			}
		}
	}
	return receiver.Ingest(c.store, c.logger, "kafka", evts)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
