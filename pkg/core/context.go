package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/psychesim/psychemem-go/pkg/llm"
	"github.com/psychesim/psychemem-go/pkg/ranker"
)

// ContextBundle is everything an agent brings to one behavior generation:
// who it is, how it feels, what it remembers, what it wants, and the
// stimulus it is reacting to.
type ContextBundle struct {
	// AgentName is the agent's display name.
	AgentName string

	// Personality is the rendered personality summary.
	Personality string

	// Demographics is the rendered demographics line. May be empty.
	Demographics string

	// Emotions is the current emotional snapshot.
	Emotions map[string]float64

	// Memories are the ranked memory excerpts, best first.
	Memories []ranker.Ranked

	// Goals are the agent's goals, highest priority first.
	Goals []Goal

	// Stimulus is the input the agent is reacting to.
	Stimulus string
}

// Messages renders the bundle as a conversation for the generation
// provider: a system message establishing the persona and a user message
// carrying the stimulus.
func (b *ContextBundle) Messages() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: b.systemPrompt()},
		{Role: "user", Content: b.Stimulus},
	}
}

// systemPrompt renders the persona block. Sections with no content are
// omitted; emotion dimensions are sorted for stable output.
func (b *ContextBundle) systemPrompt() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s. Respond in first person, staying in character.\n\n", b.AgentName)
	sb.WriteString(b.Personality)
	sb.WriteString("\n")

	if b.Demographics != "" {
		fmt.Fprintf(&sb, "Background: %s\n", b.Demographics)
	}

	if len(b.Emotions) > 0 {
		dims := make([]string, 0, len(b.Emotions))
		for dim := range b.Emotions {
			dims = append(dims, dim)
		}
		sort.Strings(dims)

		sb.WriteString("Current emotional state:")
		for _, dim := range dims {
			fmt.Fprintf(&sb, " %s=%.2f", dim, b.Emotions[dim])
		}
		sb.WriteString("\n")
	}

	if len(b.Goals) > 0 {
		sb.WriteString("Your goals:\n")
		for _, goal := range b.Goals {
			fmt.Fprintf(&sb, "- %s (priority %.1f", goal.Description, goal.Priority)
			if goal.Progress > 0 {
				fmt.Fprintf(&sb, ", %d%% done", int(goal.Progress*100))
			}
			sb.WriteString(")\n")
		}
	}

	if len(b.Memories) > 0 {
		sb.WriteString("Relevant memories, most salient first:\n")
		for _, m := range b.Memories {
			fmt.Fprintf(&sb, "- %s\n", m.Record.Content)
		}
	}

	return sb.String()
}
