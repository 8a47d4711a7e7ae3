package core

import (
	"context"

	"github.com/ajitpratap0/voterelay/pkg/models"
)

// Sink is the interface that all relational sink connectors implement.
// Every operation reports failure through its error result; callers log
// and continue rather than escalate.
type Sink interface {
	// Name returns the registry name of the sink
	Name() string

	// Connect prepares the sink for use. A failed Connect leaves the sink
	// usable: later operations try to connect again.
	Connect(ctx context.Context) error

	// EnsureTable creates the votes table if it does not exist. It must be
	// idempotent.
	EnsureTable(ctx context.Context) error

	// Insert writes one vote. It is attempted exactly once.
	Insert(ctx context.Context, vote *models.Vote) error

	// Close releases every resource held by the sink.
	Close(ctx context.Context) error
}

// Queue is the read side of the relay: a list that is consumed from the
// right.
type Queue interface {
	// PopRight removes and returns the right-most element of key. ok is
	// false when the list is empty. It never waits for new elements.
	PopRight(ctx context.Context, key string) (data []byte, ok bool, err error)
}
