package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// Summarizer condenses a batch of memory contents into one short note.
type Summarizer interface {
	Summarize(ctx context.Context, contents []string, maxLen int) (string, error)
}

// summarize runs the configured summarizer with a heuristic fallback, always
// returning something at most maxLen long.
func (e *Engine) summarize(ctx context.Context, contents []string, maxLen int) string {
	if len(contents) == 0 {
		return ""
	}
	if e.summarizer != nil {
		if out, err := e.summarizer.Summarize(ctx, contents, maxLen); err == nil && out != "" {
			return truncateString(out, maxLen)
		} else if err != nil {
			log.Printf("engine: summarizer failed, using heuristic: %v", err)
		}
	}
	return HeuristicSummarizer{}.heuristic(contents, maxLen)
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// HeuristicSummarizer builds extractive summaries without any model call: it
// leads with the first content and notes how many more the batch held.
type HeuristicSummarizer struct{}

func (h HeuristicSummarizer) Summarize(_ context.Context, contents []string, maxLen int) (string, error) {
	return h.heuristic(contents, maxLen), nil
}

func (HeuristicSummarizer) heuristic(contents []string, maxLen int) string {
	if len(contents) == 0 {
		return ""
	}
	lead := strings.TrimSpace(contents[0])
	if len(contents) > 1 {
		lead = fmt.Sprintf("%s (+%d related)", lead, len(contents)-1)
	}
	return truncateString(lead, maxLen)
}

// ClaudeSummarizer condenses memories with Anthropic's Messages API.
type ClaudeSummarizer struct {
	client *anthropic.Client
	model  string
}

// NewClaudeSummarizer constructs a client. It reads ANTHROPIC_API_KEY from
// the env. An empty model selects a small fast default.
func NewClaudeSummarizer(model string) *ClaudeSummarizer {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &ClaudeSummarizer{
		client: &cl,
		model:  model,
	}
}

func (cs *ClaudeSummarizer) Summarize(ctx context.Context, contents []string, maxLen int) (string, error) {
	if len(contents) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString("Condense these memory snippets into one short note")
	fmt.Fprintf(&sb, " of at most %d characters. Reply with the note only.\n\n", maxLen)
	for i, c := range contents {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}

	msg, err := cs.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cs.model),
		MaxTokens: 200,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(tb.Text)
		}
	}
	return truncateString(strings.TrimSpace(out.String()), maxLen), nil
}
