package contract

import "context"

// Tool is one of the three external retrieval tools. Implementations must
// map internal failures onto ToolResponse.Error rather than panicking.
type Tool interface {
	Name() ToolName
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// Toolset bundles the three tools the supervisor can reach.
type Toolset interface {
	Search() Tool
	Details() Tool
	Sentiment() Tool
}

// Classifier turns free-form conversation into a structured decision.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClarificationDecision, error)
}

// Generator produces free text from a system prompt and a user payload.
// Used for general chat replies and for rendering the final narrative.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, userPayload string) (string, error)
}

// EventPublisher receives a notification when a turn completes with a final
// summary. A nil publisher is treated as a no-op by the orchestrator.
type EventPublisher interface {
	Publish(ctx context.Context, destination string, payload any) error
}
