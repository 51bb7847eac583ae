// Package propagate builds the donor transcript a chat node inherits from
// its incoming context edges at send time.
//
// The transcript is rebuilt from live donor state on every send, never
// copied at branch time, so edits to a donor after a branch point remain
// visible to every downstream receiver. Traversal is exactly one hop:
// direct donors only, donors' donors are not transitively included.
package propagate

import (
	"fmt"

	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/llm"
)

const (
	// headerFormat labels each donor block with the donor's title.
	headerFormat = "[Conversation context from %q]"

	// separator sits between consecutive donor blocks.
	separator = "---"

	// endMarker closes the inherited context before the receiver's own
	// conversation begins.
	endMarker = "[End of connected conversation context]"
)

// BuildTranscript assembles the inherited transcript for a receiver chat
// node: for each context edge targeting it, in edge-insertion order, a
// labeled header followed by the donor's messages filtered to user and
// assistant roles. Donor system messages are never re-forwarded, so
// system instructions cannot compound across branches.
//
// Donors that are not chat nodes are ignored rather than erroring. A
// node is never its own donor.
func BuildTranscript(g *graph.Store, receiverID string) []llm.Message {
	edges := g.EdgesInto(receiverID, graph.EdgeKindContext)
	if len(edges) == 0 {
		return nil
	}

	var blocks [][]llm.Message
	for _, edge := range edges {
		if edge.Source == receiverID {
			continue
		}
		donor, ok := g.Node(edge.Source)
		if !ok || donor.Kind != graph.NodeKindChat || donor.Chat == nil {
			continue
		}

		var block []llm.Message
		for _, msg := range donor.Chat.Messages {
			if msg.Role != graph.RoleUser && msg.Role != graph.RoleAssistant {
				continue
			}
			block = append(block, llm.Message{Role: msg.Role, Content: msg.Content})
		}
		if len(block) == 0 {
			continue
		}

		header := llm.Message{
			Role:    graph.RoleSystem,
			Content: fmt.Sprintf(headerFormat, donor.Chat.Title),
		}
		blocks = append(blocks, append([]llm.Message{header}, block...))
	}

	if len(blocks) == 0 {
		return nil
	}

	var transcript []llm.Message
	for i, block := range blocks {
		transcript = append(transcript, block...)
		if i < len(blocks)-1 {
			transcript = append(transcript, llm.Message{Role: graph.RoleSystem, Content: separator})
		}
	}
	transcript = append(transcript, llm.Message{Role: graph.RoleSystem, Content: endMarker})
	return transcript
}
