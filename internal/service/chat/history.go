package chat

import (
	"context"

	model "github.com/hamdamapp/backend/internal/model/chat"
)

// History is the append-only persisted record of finalized conversation
// turns. No update operation exists; turns are immutable facts.
type History interface {
	AppendTurn(ctx context.Context, turn model.Turn) error
	ListTurns(ctx context.Context, ownerID string, channel model.Channel, limit int) ([]model.Turn, error)
	ClearTurns(ctx context.Context, ownerID string, channel model.Channel) error
}
