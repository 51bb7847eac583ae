package propagate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/propagate"
)

var _ = Describe("BuildTranscript", func() {
	var store *graph.Store

	addChat := func(title string, messages ...graph.Message) graph.Node {
		n, err := store.AddNode(graph.Node{
			Kind: graph.NodeKindChat,
			Chat: &graph.ChatPayload{Title: title, Messages: messages},
		})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	BeforeEach(func() {
		store = graph.NewStore(nil)
	})

	It("returns nothing for a node without incoming context edges", func() {
		receiver := addChat("receiver")
		Expect(propagate.BuildTranscript(store, receiver.ID)).To(BeEmpty())
	})

	It("orders donor blocks by edge insertion, not creation order", func() {
		d2 := addChat("second",
			graph.Message{Role: graph.RoleUser, Content: "u2"},
		)
		d1 := addChat("first",
			graph.Message{Role: graph.RoleUser, Content: "u1"},
			graph.Message{Role: graph.RoleAssistant, Content: "a1"},
		)
		receiver := addChat("receiver")

		// d1 wired first even though d2 was created first.
		_, err := store.AddEdge(d1.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.AddEdge(d2.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())

		transcript := propagate.BuildTranscript(store, receiver.ID)

		var contents []string
		for _, m := range transcript {
			contents = append(contents, m.Content)
		}
		Expect(contents).To(Equal([]string{
			`[Conversation context from "first"]`,
			"u1",
			"a1",
			"---",
			`[Conversation context from "second"]`,
			"u2",
			"[End of connected conversation context]",
		}))

		Expect(transcript[1].Role).To(Equal(graph.RoleUser))
		Expect(transcript[2].Role).To(Equal(graph.RoleAssistant))
	})

	It("does not re-forward donor system messages", func() {
		donor := addChat("donor",
			graph.Message{Role: graph.RoleSystem, Content: "be terse"},
			graph.Message{Role: graph.RoleUser, Content: "hi"},
		)
		receiver := addChat("receiver")
		_, err := store.AddEdge(donor.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())

		for _, m := range propagate.BuildTranscript(store, receiver.ID) {
			Expect(m.Content).NotTo(Equal("be terse"))
		}
	})

	It("reflects donor edits after the branch point", func() {
		donor := addChat("donor", graph.Message{Role: graph.RoleUser, Content: "before"})
		receiver := addChat("receiver")
		_, err := store.AddEdge(donor.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())

		first := propagate.BuildTranscript(store, receiver.ID)
		Expect(first[1].Content).To(Equal("before"))

		_, err = store.AppendMessage(donor.ID, graph.RoleAssistant, "after")
		Expect(err).NotTo(HaveOccurred())

		second := propagate.BuildTranscript(store, receiver.ID)
		Expect(second).To(HaveLen(len(first) + 1))
		Expect(second[2].Content).To(Equal("after"))
	})

	It("skips donors with no user or assistant messages", func() {
		donor := addChat("quiet")
		receiver := addChat("receiver")
		_, err := store.AddEdge(donor.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(propagate.BuildTranscript(store, receiver.ID)).To(BeEmpty())
	})

	It("ignores self-loops", func() {
		node := addChat("loop", graph.Message{Role: graph.RoleUser, Content: "me"})
		_, err := store.AddEdge(node.ID, node.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(propagate.BuildTranscript(store, node.ID)).To(BeEmpty())
	})

	It("only includes direct donors, one hop deep", func() {
		grandparent := addChat("gp", graph.Message{Role: graph.RoleUser, Content: "root"})
		parent := addChat("p", graph.Message{Role: graph.RoleUser, Content: "mid"})
		receiver := addChat("receiver")
		_, err := store.AddEdge(grandparent.ID, parent.ID)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.AddEdge(parent.ID, receiver.ID)
		Expect(err).NotTo(HaveOccurred())

		for _, m := range propagate.BuildTranscript(store, receiver.ID) {
			Expect(m.Content).NotTo(Equal("root"))
		}
	})
})
