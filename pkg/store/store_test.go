// roles/pkg/store/store_test.go

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
	"zodiac/roles/pkg/roles"
)

var (
	mod      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	target   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	member   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	manager  = roles.MustEncodeKey("MANAGER")
	operator = roles.MustEncodeKey("OPERATOR")
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	store, err := NewRedisStore(context.Background(), s.Addr(), "", 0)
	if err != nil {
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return s, store
}

func sampleState() roles.State {
	cond := conditions.CalldataMatches(conditions.EqualToWord(common.BigToHash(common.Big1)))
	return roles.State{
		Roles: []roles.Role{
			{
				Key:     manager,
				Members: []common.Address{member},
				Targets: []permissions.Target{{
					Address:   target,
					Clearance: permissions.ClearanceFunction,
					Functions: []permissions.Function{{
						Selector:         permissions.SelectorFromSignature("transfer(address,uint256)"),
						ExecutionOptions: permissions.ExecutionOptionsSend,
						Condition:        &cond,
					}},
				}},
				Annotations: []permissions.Annotation{{URI: "https://kit.example/a", Schema: "https://kit.example/openapi.json"}},
			},
			{
				Key:     operator,
				Members: []common.Address{member},
				Targets: []permissions.Target{{Address: target, Clearance: permissions.ClearanceTarget}},
			},
		},
		Allowances: []roles.Allowance{
			{Key: manager, Balance: uint256.NewInt(1000), MaxRefill: uint256.NewInt(1000), Refill: uint256.NewInt(10), Period: 3600, Timestamp: 1700000000},
		},
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "localhost:9999", "", 0)
	assert.Error(t, err)
	assert.True(t, logging.IsType(err, logging.ErrorTypeStore))
}

func TestRedisStoreSaveAndLoadState(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	state := sampleState()
	require.NoError(t, store.SaveState(ctx, mod, state))

	loaded, err := store.LoadState(ctx, mod)
	require.NoError(t, err)
	assert.Equal(t, state.Sorted(), loaded)
}

func TestRedisStoreSaveStateReplaces(t *testing.T) {
	s, store := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, mod, sampleState()))

	smaller := roles.State{Roles: []roles.Role{{Key: operator, Members: []common.Address{member}}}}
	require.NoError(t, store.SaveState(ctx, mod, smaller))

	loaded, err := store.LoadState(ctx, mod)
	require.NoError(t, err)
	assert.Equal(t, smaller, loaded)
	assert.False(t, s.Exists(RoleKey(mod, manager)))
	assert.False(t, s.Exists(AllowanceKey(mod, manager)))
}

func TestRedisStoreLoadMissingState(t *testing.T) {
	_, store := setupMiniredis(t)

	loaded, err := store.LoadState(context.Background(), mod)
	assert.NoError(t, err)
	assert.Equal(t, roles.State{}, loaded)
}

func TestRedisStoreLoadCorruptState(t *testing.T) {
	s, store := setupMiniredis(t)
	s.Set(RoleKey(mod, manager), "not json")

	_, err := store.LoadState(context.Background(), mod)
	assert.Error(t, err)
	assert.True(t, logging.IsType(err, logging.ErrorTypeStore))
}

func TestRedisStoreSaveAndLoadRole(t *testing.T) {
	s, store := setupMiniredis(t)
	ctx := context.Background()

	role := sampleState().Roles[0]
	require.NoError(t, store.SaveRole(ctx, mod, role))
	assert.True(t, s.Exists("roles:0x1000000000000000000000000000000000000001:role:"+manager.Hex()))

	loaded, ok, err := store.LoadRole(ctx, mod, manager)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, role, loaded)

	// Missing role
	_, ok, err = store.LoadRole(ctx, mod, operator)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPublishSnapshot(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	// Subscribe to the channel before publishing
	pubsub, err := store.Subscribe(ctx, SnapshotChannel)
	require.NoError(t, err)
	defer pubsub.Close()

	require.NoError(t, store.PublishSnapshot(ctx, mod))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, SnapshotChannel, msg.Channel)
		published, err := ParseSnapshotMessage(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, mod, published)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot notification not received")
	}
}
