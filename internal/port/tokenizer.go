package port

// Tokenizer splits text into terms and estimates model token counts.
type Tokenizer interface {
	Tokenize(text string) []string

	CountTokens(text string) int
}
