// Package composer turns a query and its retrieved chunks into a grounded
// answer using a text-generation service.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
)

// PromptTemplate answers document questions strictly from the context and
// small talk conversationally.
const PromptTemplate = `
You are a helpful and friendly assistant.

For questions related to the provided context, answer strictly based on the given information.
For general or social questions (e.g., greetings or small talk), respond in a human, conversational tone.

Use natural and easy-to-understand language in all your answers.
<context>
{context}
<context>
Questions: {input}
`

// ContextSeparator joins chunk texts inside the prompt.
const ContextSeparator = "\n\n"

// ErrEmptyAnswer indicates the generator returned only whitespace.
var ErrEmptyAnswer = errors.New("empty answer from generator")

type Composer struct {
	generator domain.Generator
	now       func() time.Time
}

func New(generator domain.Generator) *Composer {
	return &Composer{generator: generator, now: time.Now}
}

// BuildPrompt substitutes the joined chunk texts and the query into PromptTemplate.
func BuildPrompt(query string, chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	// Replacer scans the template once, so placeholders inside the
	// substituted text are left alone.
	r := strings.NewReplacer("{context}", strings.Join(texts, ContextSeparator), "{input}", query)
	return r.Replace(PromptTemplate)
}

// Compose asks the generator to answer query from chunks. The answer is
// returned verbatim together with the wall-clock time spent.
func (c *Composer) Compose(ctx context.Context, query string, chunks []domain.Chunk) (string, time.Duration, error) {
	start := c.now()
	answer, err := c.generator.Complete(ctx, BuildPrompt(query, chunks))
	elapsed := max(c.now().Sub(start), 0)
	if err != nil {
		logger.Warn("answer generation failed: %v", err)
		return "", elapsed, domain.NewQueryError("compose", fmt.Errorf("error in querying documents: %w", err))
	}
	if strings.TrimSpace(answer) == "" {
		return "", elapsed, domain.NewQueryError("compose", ErrEmptyAnswer)
	}
	return answer, elapsed, nil
}
