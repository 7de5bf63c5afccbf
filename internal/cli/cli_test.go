package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/monuchauhan/InstaBot/common/secret"
	"github.com/monuchauhan/InstaBot/core/db"
	"github.com/monuchauhan/InstaBot/internal/cli"
	"github.com/monuchauhan/InstaBot/internal/model"
	"github.com/monuchauhan/InstaBot/internal/queue"
	"github.com/monuchauhan/InstaBot/internal/store"
)

type fakeBackend struct {
	dlq        *queue.DLQ
	attempts   *fakeAttempts
	quotas     *fakeQuotas
	box        *secret.Box
	migrations []db.Direction
	migrateErr error
}

func (f *fakeBackend) Migrate(dir db.Direction) (uint, error) {
	f.migrations = append(f.migrations, dir)
	if f.migrateErr != nil {
		return 0, f.migrateErr
	}
	if dir == db.Down {
		return 1, nil
	}
	return 2, nil
}

func (f *fakeBackend) DLQ(context.Context) (*queue.DLQ, error) { return f.dlq, nil }

func (f *fakeBackend) Attempts(context.Context) (store.ActionAttemptStore, error) {
	return f.attempts, nil
}

func (f *fakeBackend) Quotas(context.Context) (store.QuotaStore, error) { return f.quotas, nil }

func (f *fakeBackend) Tokens() (*secret.Box, error) { return f.box, nil }

func (f *fakeBackend) Close() {}

type fakeAttempts struct {
	store.ActionAttemptStore
	rows map[string][]model.ActionAttempt
}

func (f *fakeAttempts) ListByEvent(_ context.Context, eventID string) ([]model.ActionAttempt, error) {
	return f.rows[eventID], nil
}

type fakeQuotas struct {
	store.QuotaStore
	counts map[string]int32
}

func (f *fakeQuotas) Count(_ context.Context, accountID int64, day time.Time) (int32, error) {
	if accountID != 7 {
		return 0, nil
	}
	return f.counts[day.Format(time.DateOnly)], nil
}

func run(backend cli.Backend, args ...string) (string, error) {
	return runWithInput(backend, "", args...)
}

func runWithInput(backend cli.Backend, stdin string, args ...string) (string, error) {
	cmd := cli.NewRootCommand(backend)
	cmd.SetIn(strings.NewReader(stdin))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var _ = Describe("instabotctl", func() {
	var (
		ctx     context.Context
		client  *redis.Client
		backend *fakeBackend
	)

	const (
		stream    = "events"
		dlqStream = "events_dlq"
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr := miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		box, err := secret.NewBox("test-passphrase")
		Expect(err).NotTo(HaveOccurred())

		detail := model.ReasonQuotaExceeded
		backend = &fakeBackend{
			box: box,
			dlq: queue.NewDLQ(client, stream, dlqStream, 0),
			attempts: &fakeAttempts{rows: map[string][]model.ActionAttempt{
				"c1": {
					{ID: 1, EventID: "c1", RuleID: 10, RuleKind: model.RuleKindCommentAutoReply, Status: model.AttemptStatusSuccess, TargetID: "c1", Tries: 1},
					{ID: 2, EventID: "c1", RuleID: 11, RuleKind: model.RuleKindDirectMessageSend, Status: model.AttemptStatusSkipped, TargetID: "5550001", Detail: &detail},
				},
			}},
			quotas: &fakeQuotas{counts: map[string]int32{"2026-03-01": 12}},
		}
	})

	deadLetter := func(id string) {
		consumer, err := queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
			Stream: stream, Group: "workers", Consumer: "w1", DLQStream: dlqStream,
			BatchSize: 10, Block: 10 * time.Millisecond, MaxAttempts: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		producer := queue.NewRedisProducer(client, stream, 0, nil)
		Expect(producer.Enqueue(ctx, queue.Task{
			Event: model.Event{
				ID:         id,
				Kind:       model.EventKindCommentCreated,
				AccountID:  "17841400000",
				SourceID:   id,
				Text:       "price?",
				OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				ReceivedAt: time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC),
			},
			Attempt: 1,
		})).To(Succeed())
		msgs, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(consumer.SendDLQ(ctx, msgs[0], "rule 10: boom")).To(Succeed())
	}

	It("registers every command", func() {
		root := cli.NewRootCommand(backend)
		for _, path := range [][]string{{"migrate", "up"}, {"migrate", "down"}, {"dlq", "list"}, {"dlq", "replay"}, {"quota", "show"}, {"attempts", "list"}, {"token", "encrypt"}} {
			sub, _, err := root.Find(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Name()).To(Equal(path[len(path)-1]))
		}
	})

	It("rejects unknown output formats", func() {
		_, err := run(backend, "--format", "yaml", "migrate", "up")
		Expect(err).To(MatchError(ContainSubstring("invalid format")))
		Expect(backend.migrations).To(BeEmpty())
	})

	Describe("migrate", func() {
		It("applies migrations and reports the version", func() {
			out, err := run(backend, "migrate", "up")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("migrated up, schema version 2"))
			Expect(backend.migrations).To(Equal([]db.Direction{db.Up}))
		})

		It("reverts one step as json", func() {
			out, err := run(backend, "--format", "json", "migrate", "down")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`{"direction":"down","version":1}`))
		})

		It("surfaces migration failures", func() {
			backend.migrateErr = errors.New("dirty database")
			_, err := run(backend, "migrate", "up")
			Expect(err).To(MatchError("dirty database"))
		})
	})

	Describe("dlq", func() {
		It("lists dead letters with their failure", func() {
			deadLetter("c1")
			out, err := run(backend, "--format", "json", "dlq", "list")
			Expect(err).NotTo(HaveOccurred())

			var result struct {
				Total   int64 `json:"total"`
				Letters []struct {
					EventID string `json:"event_id"`
					Error   string `json:"error"`
					Attempt int    `json:"attempt"`
				} `json:"letters"`
			}
			Expect(json.Unmarshal([]byte(out), &result)).To(Succeed())
			Expect(result.Total).To(Equal(int64(1)))
			Expect(result.Letters).To(HaveLen(1))
			Expect(result.Letters[0].EventID).To(Equal("c1"))
			Expect(result.Letters[0].Error).To(Equal("rule 10: boom"))
		})

		It("prints a table in text mode", func() {
			deadLetter("c1")
			deadLetter("c2")
			out, err := run(backend, "dlq", "list", "--limit", "1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("c1"))
			Expect(out).NotTo(ContainSubstring("c2"))
			Expect(out).To(ContainSubstring("1 of 2 dead letters shown"))
		})

		It("rejects a non-positive limit", func() {
			_, err := run(backend, "dlq", "list", "--limit", "0")
			Expect(err).To(MatchError(ContainSubstring("--limit must be positive")))
		})

		It("replays a dead letter onto the stream as a first attempt", func() {
			deadLetter("c1")
			letters, err := backend.dlq.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(letters).To(HaveLen(1))

			out, err := run(backend, "dlq", "replay", letters[0].ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("replayed " + letters[0].ID))

			Expect(client.XLen(ctx, dlqStream).Val()).To(Equal(int64(0)))
			entries := client.XRange(ctx, stream, "-", "+").Val()
			Expect(entries).To(HaveLen(1))
			msg, err := queue.ParseMessage(entries[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.Task.Event.ID).To(Equal("c1"))
			Expect(msg.Task.Attempt).To(Equal(1))
		})

		It("fails on an unknown dead letter id", func() {
			_, err := run(backend, "dlq", "replay", "1-1")
			Expect(err).To(MatchError(ContainSubstring("not found")))
		})
	})

	Describe("quota show", func() {
		It("reads the counter for the requested day", func() {
			out, err := run(backend, "--format", "json", "quota", "show", "7", "--day", "2026-03-01")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`{"account_id":7,"day":"2026-03-01","count":12}`))
		})

		It("validates its arguments", func() {
			_, err := run(backend, "quota", "show", "abc")
			Expect(err).To(MatchError(ContainSubstring("invalid account id")))

			_, err = run(backend, "quota", "show", "7", "--day", "03/01/2026")
			Expect(err).To(MatchError(ContainSubstring("invalid --day")))
		})
	})

	Describe("attempts list", func() {
		It("prints every attempt for the event", func() {
			out, err := run(backend, "attempts", "list", "--event", "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring(string(model.RuleKindCommentAutoReply)))
			Expect(out).To(ContainSubstring(model.ReasonQuotaExceeded))
		})

		It("emits an empty json array for an unknown event", func() {
			out, err := run(backend, "--format", "json", "attempts", "list", "--event", "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`[]`))
		})

		It("requires --event", func() {
			_, err := run(backend, "attempts", "list")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("token encrypt", func() {
		It("prints a stored token the worker can decrypt", func() {
			out, err := runWithInput(backend, "IGQVJ-secret-token\n", "token", "encrypt")
			Expect(err).NotTo(HaveOccurred())

			plain, err := backend.box.Decrypt(strings.TrimSpace(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(plain).To(Equal("IGQVJ-secret-token"))
		})

		It("refuses empty input", func() {
			_, err := runWithInput(backend, "\n", "token", "encrypt")
			Expect(err).To(MatchError("no token on stdin"))
		})
	})
})
