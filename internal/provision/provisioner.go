package provision

import (
	"context"

	"github.com/steward-lb/steward/internal/domain"
)

// Provisioner supplies and retires pool members. The reconciler is its
// only caller. A real fleet driver (cloud instances, containers) plugs in
// behind this interface; the local driver is the in-tree implementation.
type Provisioner interface {
	// Launch provisions one new member and returns it in the unknown
	// state. The member takes no traffic until the health gate promotes it.
	Launch(ctx context.Context) (*domain.Member, error)

	// Terminate tears down a member. Terminating a member that is not
	// running (e.g. one re-seeded from the store after a restart) is a
	// no-op.
	Terminate(ctx context.Context, id string) error
}
