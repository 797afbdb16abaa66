package usecase

import (
	"context"
	"fmt"
	"strings"

	"scirag/internal/domain"
	"scirag/internal/port"
)

const (
	noContextText  = "No relevant context found."
	noAnswerText   = "I couldn't find relevant information in the article database for this question."
	maxSubjects    = 3
	previewChars   = 300
	MethodSummary  = "summary_based"
	MethodNoResult = "no_context"
)

// ContextUseCase turns retrieval results into prompt context and answers.
type ContextUseCase struct {
	retriever port.Retriever
	tokenizer port.Tokenizer
}

// NewContextUseCase creates a new context use case.
func NewContextUseCase(retriever port.Retriever, tokenizer port.Tokenizer) *ContextUseCase {
	return &ContextUseCase{
		retriever: retriever,
		tokenizer: tokenizer,
	}
}

// Assemble formats passages as numbered [Source i] blocks in rank order.
// Blocks are added while they fit the token budget; budget <= 0 means unlimited.
func (u *ContextUseCase) Assemble(result domain.RetrievalResult, budget int) domain.AssembledContext {
	out := domain.AssembledContext{
		Query:        result.Query,
		BudgetTokens: budget,
		Sources:      []domain.Passage{},
	}

	var blocks []string
	for _, p := range result.Passages {
		block := formatSource(len(blocks)+1, p)
		tokens := u.tokenizer.CountTokens(block)
		if budget > 0 && out.UsedTokens+tokens > budget {
			break
		}
		blocks = append(blocks, block)
		out.Sources = append(out.Sources, p)
		out.UsedTokens += tokens
	}

	if len(blocks) == 0 {
		out.Text = noContextText
		return out
	}
	out.Text = strings.Join(blocks, "\n\n")
	return out
}

func formatSource(i int, p domain.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Source %d]\n", i)
	fmt.Fprintf(&b, "Title: %s\n", p.Metadata.Title)
	if p.Metadata.DOI != "" {
		fmt.Fprintf(&b, "DOI: %s\n", p.Metadata.DOI)
	}
	fmt.Fprintf(&b, "Type: %s\n", p.Kind)
	if p.Metadata.SectionTitle != "" {
		fmt.Fprintf(&b, "Section: %s\n", p.Metadata.SectionTitle)
	}
	fmt.Fprintf(&b, "Subjects: %s\n", strings.Join(firstN(p.Metadata.Subjects, maxSubjects), ", "))
	fmt.Fprintf(&b, "Content: %s", p.Content)
	return b.String()
}

// AnswerPrompt builds the instruction prompt for an answer-generating model.
func AnswerPrompt(query, contextText string) string {
	return fmt.Sprintf(`You are a scientific research assistant working with preprint literature. Answer the question using the context below. Be accurate, cite specific findings and state limitations.

QUESTION: %s

SCIENTIFIC CONTEXT:
%s

INSTRUCTIONS:
1. Base the answer primarily on the provided context
2. Cite the [Source N] blocks that support each claim
3. Say so when the context does not fully answer the question
4. Point out disagreements between sources

ANSWER:`, query, contextText)
}

// SummaryAnswer groups passages by article and summarises them without a model.
func SummaryAnswer(query string, result domain.RetrievalResult) string {
	if len(result.Passages) == 0 {
		return noAnswerText
	}

	type paper struct {
		title    string
		subjects []string
		passages []domain.Passage
	}
	var order []string
	papers := make(map[string]*paper)
	areas := make(map[string]struct{})

	for _, p := range result.Passages {
		key := articleKey(p.Metadata)
		pp, ok := papers[key]
		if !ok {
			pp = &paper{title: p.Metadata.Title, subjects: p.Metadata.Subjects}
			papers[key] = pp
			order = append(order, key)
		}
		pp.passages = append(pp.passages, p)
		for _, s := range p.Metadata.Subjects {
			areas[strings.ToLower(s)] = struct{}{}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d relevant sections from %d scientific papers:\n", len(result.Passages), len(order))

	for i, key := range order {
		pp := papers[key]
		fmt.Fprintf(&b, "\n%d. **%s**\n", i+1, pp.title)
		fmt.Fprintf(&b, "   - Research area: %s\n", strings.Join(firstN(pp.subjects, maxSubjects), ", "))
		fmt.Fprintf(&b, "   - Relevant sections: %d\n", len(pp.passages))
		for _, p := range pp.passages {
			if p.Kind == domain.KindAbstract {
				fmt.Fprintf(&b, "   - Key findings: %s\n", preview(p.Content, previewChars))
				break
			}
		}
	}

	fmt.Fprintf(&b, "\n**Summary**: The retrieved papers cover aspects related to '%s' across %d research areas. See the sections above for details.", query, len(areas))
	return b.String()
}

// Answer retrieves passages for query and answers with a grouped summary.
func (u *ContextUseCase) Answer(ctx context.Context, query string, k, budget int, filter domain.Filter) (domain.Answer, error) {
	result, err := u.retriever.Retrieve(ctx, query, k, filter)
	if err != nil {
		return domain.Answer{}, err
	}

	assembled := u.Assemble(result, budget)
	if len(assembled.Sources) == 0 {
		return domain.Answer{Query: query, Text: noAnswerText, Method: MethodNoResult, Context: assembled}, nil
	}

	used := domain.RetrievalResult{Query: query, Passages: assembled.Sources}
	return domain.Answer{
		Query:   query,
		Text:    SummaryAnswer(query, used),
		Method:  MethodSummary,
		Context: assembled,
	}, nil
}

func firstN(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// preview cuts s to n runes and marks the cut.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
