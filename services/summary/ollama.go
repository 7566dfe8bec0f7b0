// Package summarysvc narrates reconciliation digests with a local Ollama model.
package summarysvc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/summary"
)

var errEmptyResponse = errors.New("empty model response")

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type ollamaSummarizer struct {
	llm         contentGenerator
	model       string
	temperature float64
	timeout     time.Duration
}

var _ summary.Summarizer = (*ollamaSummarizer)(nil)

// NewOllamaSummarizer connects to the Ollama server configured in conf.
func NewOllamaSummarizer(conf *core.Config) (summary.Summarizer, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(strings.TrimRight(conf.Ollama.BaseURL, "/")),
		ollama.WithModel(conf.Ollama.Model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating ollama client")
	}
	s := newSummarizer(llm, conf.Ollama.Model)
	s.timeout = conf.Ollama.Timeout
	return s, nil
}

func newSummarizer(llm contentGenerator, model string) *ollamaSummarizer {
	return &ollamaSummarizer{llm: llm, model: model, temperature: .2}
}

func (s *ollamaSummarizer) Summarize(ctx context.Context, d summary.Digest) (summary.Analysis, error) {
	prompt, err := summary.Prompt(d)
	if err != nil {
		return summary.Analysis{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, summary.SystemPrompt),
			llms.TextParts(schema.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(s.temperature),
	)
	if err != nil {
		return summary.Analysis{}, errors.Wrapf(err, "calling ollama (%s)", s.model)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return summary.Analysis{}, errEmptyResponse
	}

	res, err := summary.ParseAnalysis(resp.Choices[0].Content)
	if err != nil {
		return summary.Analysis{}, errors.Wrapf(err, "parsing ollama (%s) response", s.model)
	}
	return res, nil
}
