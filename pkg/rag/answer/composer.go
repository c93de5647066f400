package answer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/pkg/llm"
	"legal-discovery-be/pkg/store"
)

// Evidence is the text of one ALLOW candidate, in fused order.
type Evidence struct {
	DocID string
	Text  string
}

// Composer writes answer text from allowed evidence only. Every claim must
// carry a [doc_id] marker naming one of the evidence documents.
type Composer interface {
	Compose(ctx context.Context, q store.Query, evidence []Evidence) (string, error)
}

var ErrNoEvidence = errors.New("answer: no evidence to compose from")

// ExtractiveComposer quotes each evidence excerpt behind its marker. Output is
// a pure function of its input.
type ExtractiveComposer struct {
	MaxExcerpt int
}

func (c ExtractiveComposer) Compose(_ context.Context, _ store.Query, evidence []Evidence) (string, error) {
	if len(evidence) == 0 {
		return "", ErrNoEvidence
	}
	limit := c.MaxExcerpt
	if limit <= 0 {
		limit = 280
	}

	lines := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		lines = append(lines, fmt.Sprintf("[%s] %s", ev.DocID, excerpt(ev.Text, limit)))
	}
	return strings.Join(lines, "\n"), nil
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "(document matched; no excerpt available)"
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

var markerPattern = regexp.MustCompile(`\[([^\[\]\s]+)\]`)

// Markers returns the doc ids cited in text, in order of appearance.
func Markers(text string) []string {
	var out []string
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

const systemPrompt = `You answer questions for a litigation review team using ONLY the numbered excerpts provided.
Rules:
- Every sentence must end with the marker of the excerpt it relies on, written exactly as [doc_id].
- Never cite a document that is not listed.
- If the excerpts do not answer the question, say so in one sentence citing the closest excerpt.`

// LLMComposer asks a chat model to summarize the evidence and falls back to
// the extractive composer when the model fails or cites outside the evidence.
type LLMComposer struct {
	provider llm.LLMProvider
	fallback Composer
	logger   logger.ILogger
	options  []llm.Option
}

func NewLLMComposer(provider llm.LLMProvider, fallback Composer, log logger.ILogger, options ...llm.Option) *LLMComposer {
	if fallback == nil {
		fallback = ExtractiveComposer{}
	}
	return &LLMComposer{provider: provider, fallback: fallback, logger: log, options: options}
}

func (c *LLMComposer) Compose(ctx context.Context, q store.Query, evidence []Evidence) (string, error) {
	if len(evidence) == 0 {
		return "", ErrNoEvidence
	}

	var b strings.Builder
	for _, ev := range evidence {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", ev.DocID, excerpt(ev.Text, 2000))
	}
	history := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Excerpts:\n\n%s\nQuestion: %s", b.String(), q.Text)},
	}

	text, err := c.provider.Chat(ctx, history, c.options...)
	if err == nil {
		err = checkCitations(text, evidence)
	}
	if err != nil {
		c.logger.Warn("ANSWER", "LLM composition rejected, using extractive answer", map[string]interface{}{
			"query_id": q.ID,
			"error":    err.Error(),
		})
		return c.fallback.Compose(ctx, q, evidence)
	}
	return strings.TrimSpace(text), nil
}

func checkCitations(text string, evidence []Evidence) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty completion")
	}
	allowed := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		allowed[ev.DocID] = true
	}
	markers := Markers(text)
	if len(markers) == 0 {
		return errors.New("completion cites nothing")
	}
	for _, m := range markers {
		if !allowed[m] {
			return fmt.Errorf("completion cites %q outside the allowed evidence", m)
		}
	}
	return nil
}
