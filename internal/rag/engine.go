// Package rag wires retrieval and generation into a single
// question-answering engine for the support desk.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/llm"
	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/qa"
)

const (
	// defaultAnswerTopK is how many documents are retrieved as context
	// for an answer.
	defaultAnswerTopK = 6
	// defaultSearchTopK is how many documents a direct search returns
	// when the caller does not say.
	defaultSearchTopK = 3
)

// ValidationError reports a request that cannot be answered as given,
// before any retrieval or generation happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "rag: " + e.Reason }

// Engine answers support questions by retrieving similar records from the
// index and asking the language model to ground its answer in them.
type Engine struct {
	index index.Index
	llm   llm.Client
	log   *slog.Logger
}

// New builds an Engine. Both the index and the model client are required.
func New(idx index.Index, client llm.Client, log *slog.Logger) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("rag: index is required")
	}
	if client == nil {
		return nil, fmt.Errorf("rag: llm client is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{index: idx, llm: client, log: log}, nil
}

// Answer responds to the most recent user question in a conversation. The
// full history is rendered into the prompt so the model can resolve
// follow-ups, but only the last user turn drives retrieval.
func (e *Engine) Answer(ctx context.Context, turns []qa.Turn) (string, error) {
	question, ok := qa.LastUserQuestion(turns)
	if !ok {
		return "", &ValidationError{Reason: "no user question present"}
	}

	results, err := e.index.Search(ctx, question, defaultAnswerTopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	e.log.Debug("retrieved context for answer", "question_len", len(question), "documents", len(results))

	prompt := fmt.Sprintf(conversationalTemplate, formatDocuments(results), formatHistory(turns), question)
	answer, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// AnswerQuestion responds to a single question with no conversation
// history, using the terser prompt.
func (e *Engine) AnswerQuestion(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", &ValidationError{Reason: "question is empty"}
	}

	results, err := e.index.Search(ctx, question, defaultAnswerTopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	prompt := fmt.Sprintf(simpleTemplate, formatDocuments(results), question)
	answer, err := e.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Search returns the records closest to the query without generating an
// answer. A non-positive k falls back to the default.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]index.Result, error) {
	if query == "" {
		return nil, &ValidationError{Reason: "query is empty"}
	}
	if k <= 0 {
		k = defaultSearchTopK
	}
	return e.index.Search(ctx, query, k)
}
