// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the generation collaborator used by planning,
// drafting, summarizing, and editing, with OpenAI and Claude backends, a
// retrying decorator, and schema-checked structured output.
package llm

import (
	"context"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Request is one generation call.
type Request struct {
	Messages []Message

	// Temperature is the sampling temperature. Zero uses the backend default.
	Temperature float64

	// MaxTokens caps the completion. Zero uses the backend default.
	MaxTokens int
}

// Response is the generated text and its token cost.
type Response struct {
	Text string

	// TokensUsed is the total prompt+completion tokens reported by the
	// backend. Zero when the backend did not report usage.
	TokensUsed int
}

// Generator produces text from a conversation. Implementations return
// *types.CollaboratorError for backend failures so callers can tell
// transient errors from permanent ones.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
