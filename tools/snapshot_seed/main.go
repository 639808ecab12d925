// roles/tools/snapshot_seed/main.go

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"zodiac/roles/pkg/roles"
	"zodiac/roles/pkg/runtime"
	"zodiac/roles/pkg/store"
)

func main() {
	addr := flag.String("redis", "localhost:6379", "Redis address")
	flag.Parse()

	ctx := context.Background()
	st, err := store.NewRedisStore(ctx, *addr, "", 0)
	if err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	startCLI(ctx, st, os.Stdin)
}

// loadState reads a snapshot file. Files listing desired roles in the
// permissions format are projected into the state they describe.
func loadState(filename string) (roles.State, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return roles.State{}, err
	}

	var probe struct {
		Roles []struct {
			PermissionSets json.RawMessage `json:"permissionSets"`
		} `json:"roles"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return roles.State{}, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	for _, r := range probe.Roles {
		if r.PermissionSets != nil {
			var desired runtime.Desired
			if err := json.Unmarshal(data, &desired); err != nil {
				return roles.State{}, fmt.Errorf("error parsing %s: %w", filename, err)
			}
			return desired.Project()
		}
	}

	var state roles.State
	if err := json.Unmarshal(data, &state); err != nil {
		return roles.State{}, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	return state, nil
}

func startCLI(ctx context.Context, st store.Store, in io.Reader) {
	reader := bufio.NewReader(in)

	for {
		fmt.Print("Enter command (seed <mod> <file>, publish <mod>, clear <mod> or exit): ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "exit" || (err != nil && input == "") {
			break
		}

		if err := processCommand(ctx, st, input); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func parseMod(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid modifier address %q", s)
	}
	return common.HexToAddress(s), nil
}

func processCommand(ctx context.Context, st store.Store, input string) error {
	parts := strings.Fields(input)
	if len(parts) < 2 {
		return fmt.Errorf("invalid command. Use 'seed <mod> <file>', 'publish <mod>' or 'clear <mod>'")
	}
	mod, err := parseMod(parts[1])
	if err != nil {
		return err
	}

	switch {
	case parts[0] == "seed" && len(parts) == 3:
		state, err := loadState(parts[2])
		if err != nil {
			return err
		}
		if err := st.SaveState(ctx, mod, state); err != nil {
			return err
		}
		fmt.Printf("Seeded %d roles and %d allowances for %s\n", len(state.Roles), len(state.Allowances), mod.Hex())
	case parts[0] == "clear" && len(parts) == 2:
		if err := st.SaveState(ctx, mod, roles.State{}); err != nil {
			return err
		}
		fmt.Printf("Cleared state of %s\n", mod.Hex())
	case parts[0] == "publish" && len(parts) == 2:
	default:
		return fmt.Errorf("invalid command. Use 'seed <mod> <file>', 'publish <mod>' or 'clear <mod>'")
	}

	if err := st.PublishSnapshot(ctx, mod); err != nil {
		return fmt.Errorf("error publishing snapshot: %w", err)
	}
	fmt.Printf("Published snapshot of %s to %s\n", mod.Hex(), store.SnapshotChannel)
	return nil
}
