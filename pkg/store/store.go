// roles/pkg/store/store.go

package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"zodiac/roles/pkg/roles"
)

// SnapshotChannel carries the address of every modifier whose snapshot was
// replaced.
const SnapshotChannel = "roles_snapshots"

// Store caches the last known on-chain state of roles modifiers.
type Store interface {
	SaveState(ctx context.Context, mod common.Address, state roles.State) error
	LoadState(ctx context.Context, mod common.Address) (roles.State, error)
	SaveRole(ctx context.Context, mod common.Address, role roles.Role) error
	LoadRole(ctx context.Context, mod common.Address, key common.Hash) (roles.Role, bool, error)
	ScanMods(ctx context.Context, pattern string) ([]common.Address, error)
	PublishSnapshot(ctx context.Context, mod common.Address) error
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
}
