package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/eventstream"
	"github.com/papercomputeco/weave/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var publisher *nop.Publisher

	BeforeEach(func() {
		publisher = nop.NewPublisher()
	})

	It("accepts events without error", func() {
		event := eventstream.SessionSaved("sess_123")
		Expect(publisher.Publish(context.Background(), event)).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(publisher.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilCanvasEvent))
	})

	It("closes cleanly", func() {
		Expect(publisher.Close()).To(Succeed())
	})
})
