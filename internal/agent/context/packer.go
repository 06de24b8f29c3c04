// Package context selects which messages from a session's history are sent
// to the provider on each turn, within a char budget cheap enough to compute
// without tokenizing (spec §4.5's packing step). Compaction itself — folding
// old messages into a summary — is a physical operation on the session store
// (sessions.Store.ReplaceMessageRange), not something this package tracks;
// once a range is replaced, the summary is just another message in history.
package context

import (
	"github.com/ainoobmenpg/cc-gateway/pkg/models"
)

// PackOptions configures how messages are packed into context.
type PackOptions struct {
	// MaxMessages is the hard cap on number of messages to include.
	MaxMessages int

	// MaxChars is the approximate character budget (cheap proxy for tokens).
	MaxChars int

	// MaxToolResultChars is the max chars per tool result block. Longer
	// results are truncated in the packed copy only; the stored message is
	// untouched.
	MaxToolResultChars int
}

// DefaultPackOptions returns sensible defaults for context packing.
func DefaultPackOptions() PackOptions {
	return PackOptions{
		MaxMessages:        60,
		MaxChars:           30000,
		MaxToolResultChars: 6000,
	}
}

// Packer selects and prepares messages for LLM context.
type Packer struct {
	opts PackOptions
}

// NewPacker creates a new context packer with the given options.
func NewPacker(opts PackOptions) *Packer {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 60
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 30000
	}
	if opts.MaxToolResultChars <= 0 {
		opts.MaxToolResultChars = 6000
	}
	return &Packer{opts: opts}
}

// Pack selects messages from history to fit within budget, in chronological
// order, followed by the incoming user message. Messages are selected from
// the end (most recent) backwards until either MaxMessages or MaxChars is
// reached; tool result content is truncated to MaxToolResultChars.
func (p *Packer) Pack(history []*models.Message, incoming *models.Message) []*models.Message {
	totalChars := 0
	totalMsgs := 0

	if incoming != nil {
		totalChars += p.messageChars(incoming)
		totalMsgs++
	}

	selectedReverse := make([]*models.Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil {
			continue
		}
		msgChars := p.messageChars(m)

		if totalMsgs+1 > p.opts.MaxMessages {
			break
		}
		if totalChars+msgChars > p.opts.MaxChars {
			break
		}

		selectedReverse = append(selectedReverse, m)
		totalMsgs++
		totalChars += msgChars
	}

	result := make([]*models.Message, 0, len(selectedReverse)+1)
	for i := len(selectedReverse) - 1; i >= 0; i-- {
		result = append(result, p.truncateToolResults(selectedReverse[i]))
	}
	if incoming != nil {
		result = append(result, incoming)
	}
	return result
}

// messageChars estimates the character count for a message.
func (p *Packer) messageChars(m *models.Message) int {
	if m == nil {
		return 0
	}
	chars := 0
	for _, b := range m.Content {
		switch b.Kind {
		case models.BlockText:
			chars += len(b.Text)
		case models.BlockToolUse:
			chars += len(b.ToolUseName) + len(b.ToolUseInput)
		case models.BlockToolResult:
			chars += len(b.ToolResultOutput)
		case models.BlockThinking:
			chars += len(b.Thinking)
		}
	}
	return chars
}

// truncateToolResults returns a copy with truncated tool-result block text.
// The original message (and its stored copy) is untouched.
func (p *Packer) truncateToolResults(m *models.Message) *models.Message {
	needsTruncation := false
	for _, b := range m.Content {
		if b.Kind == models.BlockToolResult && len(b.ToolResultOutput) > p.opts.MaxToolResultChars {
			needsTruncation = true
			break
		}
	}
	if !needsTruncation {
		return m
	}

	clone := *m
	clone.Content = make([]models.ContentBlock, len(m.Content))
	for i, b := range m.Content {
		if b.Kind == models.BlockToolResult && len(b.ToolResultOutput) > p.opts.MaxToolResultChars {
			b.ToolResultOutput = b.ToolResultOutput[:p.opts.MaxToolResultChars] + "\n...[truncated]"
		}
		clone.Content[i] = b
	}
	return &clone
}
