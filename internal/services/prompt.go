package services

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/railchat/internal/config"
)

const (
	blendSystemPrompt = "You are a helpful assistant for questions about the user's documents. " +
		"Prefer the provided context and supplement it with general knowledge where it falls short."
	strictSystemPrompt  = "You are a careful assistant. Answer only from the provided context."
	generalSystemPrompt = "You are a helpful assistant."
)

// buildPrompt returns the system and user prompts for a context-grounded
// answer under policy.
func buildPrompt(policy, context, query string) (system, user string) {
	if policy == config.PolicyStrict {
		return strictSystemPrompt, fmt.Sprintf(
			"Using only the following context, answer the question. If the answer isn't in the context, say so.\n\nContext: %s\n\nQuestion: %s",
			context, query)
	}
	return blendSystemPrompt, fmt.Sprintf("Based on this context: %s\n\nQuestion: %s", context, query)
}

// Title is the first n whitespace-separated words of query.
func Title(query string, n int) string {
	words := strings.Fields(query)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
