package worker_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/worker"
)

var _ = Describe("RedisReclaimer", func() {
	var (
		ctx      context.Context
		client   *redis.Client
		consumer *queue.RedisConsumer
		cfg      queue.ConsumerConfig
		handled  []queue.Message
		handler  worker.MessageHandler
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr := miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		cfg = queue.ConsumerConfig{
			Stream:      "events",
			Group:       "workers",
			Consumer:    "dead-worker",
			DLQStream:   "events_dlq",
			DelayedSet:  "events_delayed",
			BatchSize:   10,
			Block:       10 * time.Millisecond,
			MaxAttempts: 3,
		}
		var err error
		consumer, err = queue.NewRedisConsumer(ctx, client, cfg)
		Expect(err).NotTo(HaveOccurred())

		producer := queue.NewRedisProducer(client, cfg.Stream, 100, nil)
		Expect(producer.Enqueue(ctx, queue.Task{Event: model.Event{
			ID: "c-1", Kind: model.EventKindCommentCreated, AccountID: "1784", SourceID: "c-1",
			Text: "price", OccurredAt: time.Now(), ReceivedAt: time.Now(),
		}})).To(Succeed())

		// Deliver without acking, as a crashed worker would.
		msgs, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))

		handled = nil
		handler = func(ctx context.Context, msg queue.Message) error {
			handled = append(handled, msg)
			return consumer.Ack(ctx, msg)
		}
	})

	newReclaimer := func(maxDeliveries int64) *worker.RedisReclaimer {
		return worker.NewRedisReclaimer(client, worker.RedisReclaimerConfig{
			Stream:        cfg.Stream,
			Group:         cfg.Group,
			Consumer:      "rescuer",
			MinIdle:       0,
			Interval:      time.Second,
			BatchSize:     10,
			MaxDeliveries: maxDeliveries,
		}, consumer, handler)
	}

	It("claims a stale entry and hands it to the handler", func() {
		n, err := newReclaimer(5).ReclaimOnce(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(handled).To(HaveLen(1))
		Expect(handled[0].Task.Event.ID).To(Equal("c-1"))

		pending, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending.Count).To(BeZero())
	})

	It("dead-letters an entry delivered too many times", func() {
		n, err := newReclaimer(1).ReclaimOnce(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(handled).To(BeEmpty())
		Expect(client.XLen(ctx, cfg.DLQStream).Val()).To(Equal(int64(1)))
	})

	It("does nothing when no entry is pending", func() {
		r := newReclaimer(5)
		_, err := r.ReclaimOnce(ctx)
		Expect(err).NotTo(HaveOccurred())

		n, err := r.ReclaimOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})
})
