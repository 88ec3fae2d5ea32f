package ai

import (
	"context"

	"github.com/mesnalabs/mesna-bot/internal/session"
)

// Provider is the boundary to a hosted conversational model. Both provider
// shapes honour the same contract: system instruction plus alternating
// role-tagged history in, free text out. The reply may or may not carry a
// trailing order tag — that is the extractor's business, not the provider's.
type Provider interface {
	Chat(ctx context.Context, system string, history []session.Turn, message string) (string, error)
}
