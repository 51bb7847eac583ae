package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/eventstream"
	"github.com/papercomputeco/weave/pkg/graph"
)

var _ = Describe("Event", func() {
	It("marshals CanvasEvent with expected top-level keys", func() {
		event := eventstream.SessionSaved("sess_123")

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("session_id"))
	})

	It("maps graph events onto the weave namespace", func() {
		event := eventstream.FromGraphEvent(graph.Event{
			Type:   graph.EventNodeAdded,
			NodeID: "n1",
		}, "sess_123")

		Expect(event.EventType).To(Equal(eventstream.EventTypeNodeAdded))
		Expect(event.NodeID).To(Equal("n1"))
		Expect(event.SessionID).To(Equal("sess_123"))
		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventID).NotTo(BeEmpty())
	})

	It("assigns each event a unique id", func() {
		a := eventstream.SessionSaved("s")
		b := eventstream.SessionSaved("s")
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeNodeAdded).To(Equal("weave.node.added"))
		Expect(eventstream.EventTypeSessionSaved).To(Equal("weave.session.saved"))
	})

	It("provides ErrNilCanvasEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilCanvasEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilCanvasEvent).To(MatchError("nil canvas event"))
	})
})
