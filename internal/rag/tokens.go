// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rag

// Token and word heuristics shared by every stage. These are approximations
// tuned for English prose, not tokenizer-exact counts.

const (
	// CharsPerToken converts between characters and tokens.
	CharsPerToken = 4

	// TokensPerWord converts words to tokens.
	TokensPerWord = 1.3

	// draftingHeadroom scales the drafting completion budget above the word target.
	draftingHeadroom = 1.2

	// contextMultiplier sizes research context relative to the words being written.
	contextMultiplier = 2
)

// EstimateTokens approximates the token count of s as len(s)/4.
func EstimateTokens(s string) int {
	return len(s) / CharsPerToken
}

// TokensToChars converts a token budget to a character budget.
func TokensToChars(tokens int) int {
	return tokens * CharsPerToken
}

// WordsToTokens converts a word count to an approximate token count.
func WordsToTokens(words int) int {
	return int(float64(words) * TokensPerWord)
}

// MaxTokensForWords is the completion budget for drafting a section of the
// given word count.
func MaxTokensForWords(words int) int {
	return int(float64(words) * TokensPerWord * draftingHeadroom)
}

// ContextBudgetForWords is the research context budget for a section of the
// given word count.
func ContextBudgetForWords(words int) int {
	return int(float64(words) * TokensPerWord * contextMultiplier)
}

// SplitBudget divides a total token budget evenly across n queries using
// integer division. Any remainder is left unused.
func SplitBudget(total, n int) int {
	if n <= 0 || total <= 0 {
		return 0
	}
	return total / n
}
