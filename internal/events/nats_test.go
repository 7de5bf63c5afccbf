package events_test

import (
	"context"
	"encoding/json"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/monuchauhan/InstaBot/internal/events"
)

func startTestNATS() string {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	Expect(err).NotTo(HaveOccurred())
	srv.Start()
	DeferCleanup(srv.Shutdown)
	Expect(srv.ReadyForConnections(5 * time.Second)).To(BeTrue(), "embedded NATS not ready")
	return srv.ClientURL()
}

var _ = Describe("NATSPublisher", func() {
	It("publishes JSON events to the topic", func() {
		url := startTestNATS()

		sub, err := nats.Connect(url)
		Expect(err).NotTo(HaveOccurred())
		defer sub.Close()
		msgs := make(chan *nats.Msg, 1)
		_, err = sub.ChanSubscribe("instabot.account.>", msgs)
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.Flush()).To(Succeed())

		pub, err := events.NewNATSPublisher(url)
		Expect(err).NotTo(HaveOccurred())
		defer pub.Close()

		err = pub.Publish(context.Background(), events.TopicCredentialInvalid, events.CredentialInvalid{
			AccountID: 7,
			RuleID:    42,
			EventID:   "c1",
			Detail:    "code 190",
		})
		Expect(err).NotTo(HaveOccurred())

		var msg *nats.Msg
		Eventually(msgs, 2*time.Second).Should(Receive(&msg))
		Expect(msg.Subject).To(Equal(events.TopicCredentialInvalid))

		var got events.CredentialInvalid
		Expect(json.Unmarshal(msg.Data, &got)).To(Succeed())
		Expect(got.AccountID).To(Equal(int64(7)))
		Expect(got.RuleID).To(Equal(int64(42)))
		Expect(got.Detail).To(Equal("code 190"))
	})

	It("fails to connect to an unreachable server", func() {
		_, err := events.NewNATSPublisher("nats://127.0.0.1:1", nats.MaxReconnects(0), nats.Timeout(200*time.Millisecond))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NoopPublisher", func() {
	It("accepts everything", func() {
		var pub events.Publisher = &events.NoopPublisher{}
		Expect(pub.Publish(context.Background(), events.TopicCredentialInvalid, nil)).To(Succeed())
		Expect(pub.Close()).To(Succeed())
	})
})
