package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// assembledContext is the output of one assembly pass.
type assembledContext struct {
	Context    string
	Included   []model.ScoredMemory
	Truncated  bool
	Summarized bool
}

const contextHeader = "Relevant memories:\n"

// assemble formats ranked memories into a context string that never exceeds
// maxLen. Entries are appended in rank order until the next one would
// overflow; the remainder is either condensed into one short note (when
// summarization is enabled and the note fits) or dropped with Truncated set.
func (e *Engine) assemble(ctx context.Context, ranked []model.ScoredMemory, maxLen int) assembledContext {
	if len(ranked) == 0 {
		return assembledContext{}
	}

	var sb strings.Builder
	if len(contextHeader) <= maxLen {
		sb.WriteString(contextHeader)
	}

	out := assembledContext{}
	overflowAt := len(ranked)
	for i, m := range ranked {
		entry := formatEntry(i+1, m)
		if sb.Len()+len(entry) > maxLen {
			overflowAt = i
			break
		}
		sb.WriteString(entry)
		out.Included = append(out.Included, m)
	}

	if overflowAt < len(ranked) {
		out.Truncated = true
		if e.opts.EnableSummarization {
			remainder := make([]string, 0, len(ranked)-overflowAt)
			for _, m := range ranked[overflowAt:] {
				remainder = append(remainder, m.Content)
			}
			// Length is re-measured after the addition; a note that would
			// overflow is discarded entirely.
			budget := maxLen - sb.Len() - len("[Summary of older memories] \n")
			if budget > 0 {
				note := e.summarize(ctx, remainder, budget)
				line := fmt.Sprintf("[Summary of older memories] %s\n", note)
				if note != "" && sb.Len()+len(line) <= maxLen {
					sb.WriteString(line)
					out.Summarized = true
					e.metrics.summaries.Add(1)
				}
			}
		}
	}

	out.Context = sb.String()
	return out
}

// formatEntry renders one memory with a readable header. The memory type
// defaults to "memory" when untagged.
func formatEntry(rank int, m model.ScoredMemory) string {
	kind := m.MemoryType
	if kind == "" {
		kind = "memory"
	}
	return fmt.Sprintf("%d. [%s] %s\n", rank, kind, strings.TrimSpace(m.Content))
}
