package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scirag/internal/adapter/analyzer"
	"scirag/internal/domain"
)

type fixedRetriever struct {
	result domain.RetrievalResult
	err    error
}

func (r fixedRetriever) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	r.result.Query = query
	return r.result, r.err
}

func samplePassages() []domain.Passage {
	return []domain.Passage{
		{
			ChunkID:    "a-abs",
			Content:    "CRISPR enables targeted edits.",
			Kind:       domain.KindAbstract,
			Metadata:   domain.ChunkMetadata{Title: "CRISPR Review", DOI: "10.1101/000001", Subjects: []string{"Genomics"}},
			Similarity: 0.9,
		},
		{
			ChunkID:    "a-s1",
			Content:    "Bacteria use CRISPR for immunity.",
			Kind:       domain.KindSection,
			Metadata:   domain.ChunkMetadata{Title: "CRISPR Review", DOI: "10.1101/000001", Subjects: []string{"Genomics"}, SectionTitle: "Introduction"},
			Similarity: 0.7,
		},
		{
			ChunkID:    "b-abs",
			Content:    "Phage defence systems are diverse.",
			Kind:       domain.KindAbstract,
			Metadata:   domain.ChunkMetadata{Title: "Phage Defence", Subjects: []string{"Microbiology", "Ecology", "Genetics", "Virology"}},
			Similarity: 0.6,
		},
	}
}

func TestAssemble_FormatsSources(t *testing.T) {
	uc := NewContextUseCase(nil, analyzer.NewTokenizer())
	out := uc.Assemble(domain.RetrievalResult{Query: "crispr", Passages: samplePassages()}, 0)

	require.Len(t, out.Sources, 3)
	assert.True(t, strings.HasPrefix(out.Text, "[Source 1]\nTitle: CRISPR Review\nDOI: 10.1101/000001\nType: abstract\n"))
	assert.Contains(t, out.Text, "[Source 2]\nTitle: CRISPR Review\nDOI: 10.1101/000001\nType: section\nSection: Introduction\n")
	assert.Contains(t, out.Text, "Subjects: Microbiology, Ecology, Genetics\n")
	assert.NotContains(t, out.Text, "Virology")
	assert.NotContains(t, out.Text, "[Source 3]\nTitle: Phage Defence\nDOI:")
	assert.Greater(t, out.UsedTokens, 0)
}

func TestAssemble_RespectsBudget(t *testing.T) {
	tok := analyzer.NewTokenizer()
	uc := NewContextUseCase(nil, tok)
	passages := samplePassages()

	first := tok.CountTokens(formatSource(1, passages[0]))
	out := uc.Assemble(domain.RetrievalResult{Passages: passages}, first)

	require.Len(t, out.Sources, 1)
	assert.Equal(t, "a-abs", out.Sources[0].ChunkID)
	assert.Equal(t, first, out.UsedTokens)
	assert.LessOrEqual(t, out.UsedTokens, out.BudgetTokens)
	assert.NotContains(t, out.Text, "[Source 2]")
}

func TestAssemble_NoContext(t *testing.T) {
	uc := NewContextUseCase(nil, analyzer.NewTokenizer())

	out := uc.Assemble(domain.RetrievalResult{}, 100)
	assert.Equal(t, noContextText, out.Text)
	assert.Empty(t, out.Sources)

	out = uc.Assemble(domain.RetrievalResult{Passages: samplePassages()}, 1)
	assert.Equal(t, noContextText, out.Text, "first block over budget leaves nothing")
}

func TestSummaryAnswer(t *testing.T) {
	text := SummaryAnswer("crispr", domain.RetrievalResult{Passages: samplePassages()})

	assert.True(t, strings.HasPrefix(text, "Based on 3 relevant sections from 2 scientific papers:"))
	assert.Contains(t, text, "1. **CRISPR Review**")
	assert.Contains(t, text, "   - Relevant sections: 2\n")
	assert.Contains(t, text, "   - Key findings: CRISPR enables targeted edits.\n")
	assert.Contains(t, text, "2. **Phage Defence**")
	assert.Contains(t, text, "across 5 research areas")

	assert.Equal(t, noAnswerText, SummaryAnswer("crispr", domain.RetrievalResult{}))
}

func TestSummaryAnswer_PreviewCut(t *testing.T) {
	long := strings.Repeat("a", previewChars+50)
	text := SummaryAnswer("q", domain.RetrievalResult{Passages: []domain.Passage{
		{Content: long, Kind: domain.KindAbstract, Metadata: domain.ChunkMetadata{Title: "T"}},
	}})
	assert.Contains(t, text, strings.Repeat("a", previewChars)+"...")
	assert.NotContains(t, text, strings.Repeat("a", previewChars+1))
}

func TestAnswerPrompt(t *testing.T) {
	prompt := AnswerPrompt("What does CRISPR do?", "[Source 1]\nContent: edits")
	assert.Contains(t, prompt, "QUESTION: What does CRISPR do?")
	assert.Contains(t, prompt, "SCIENTIFIC CONTEXT:\n[Source 1]\nContent: edits")
	assert.True(t, strings.HasSuffix(prompt, "ANSWER:"))
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	tok := analyzer.NewTokenizer()

	uc := NewContextUseCase(fixedRetriever{result: domain.RetrievalResult{Passages: samplePassages()}}, tok)
	ans, err := uc.Answer(ctx, "crispr", 3, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodSummary, ans.Method)
	assert.Equal(t, "crispr", ans.Query)
	assert.Len(t, ans.Context.Sources, 3)
	assert.Contains(t, ans.Text, "2 scientific papers")

	empty := NewContextUseCase(fixedRetriever{}, tok)
	ans, err = empty.Answer(ctx, "crispr", 3, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodNoResult, ans.Method)
	assert.Equal(t, noAnswerText, ans.Text)

	failing := NewContextUseCase(fixedRetriever{err: domain.ErrEmptyQuery}, tok)
	_, err = failing.Answer(ctx, " ", 3, 0, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}
