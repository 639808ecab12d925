package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"zodiac/roles/pkg/abishape"
	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/permissions"
	"zodiac/roles/pkg/roles"
	"zodiac/roles/pkg/runtime"
)

var signatures = []string{
	"transfer(address,uint256)",
	"approve(address,uint256)",
	"deposit(uint256)",
	"withdraw(uint256,address)",
	"mint(address,uint256,bytes)",
	"swap(uint8,address[],bytes,uint256)",
	"setConfig((address,uint16,bool))",
}

type options struct {
	roles   int
	targets int
	seed    uint64
	output  string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	numRoles := fs.Int("roles", 10, "Number of roles to generate")
	numTargets := fs.Int("targets", 5, "Number of targets per role")
	seed := fs.Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	outputFile := fs.String("output", "permissions.json", "Output file name")
	if err := fs.Parse(args[1:]); err != nil {
		return options{}, err
	}
	if *numRoles <= 0 || *numTargets <= 0 {
		return options{}, fmt.Errorf("roles and targets must be positive")
	}
	opts := options{roles: *numRoles, targets: *numTargets, seed: *seed, output: *outputFile}
	if opts.seed == 0 {
		opts.seed = uint64(time.Now().UnixNano())
	}
	return opts, nil
}

type generator struct {
	f          *gofakeit.Faker
	allowances []common.Hash
}

func chance(f *gofakeit.Faker, percent int) bool {
	return f.IntRange(0, 99) < percent
}

func (g *generator) address() common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(g.f.UUID())))
}

func (g *generator) word() common.Hash {
	return common.BigToHash(uint256.NewInt(g.f.Uint64()).ToBig())
}

func (g *generator) roleKey(index int) string {
	key := fmt.Sprintf("%s_%d", strings.ToUpper(g.f.Word()), index)
	if len(key) > 32 {
		key = key[len(key)-32:]
	}
	return key
}

// staticLeaf scopes one atomic argument.
func (g *generator) staticLeaf(s abishape.Shape) conditions.Condition {
	switch n := g.f.IntRange(0, 9); {
	case n < 3:
		return s.Skeleton()
	case n < 5:
		return conditions.EqualToWord(g.word())
	case n < 6:
		return conditions.GreaterThanWord(g.word())
	case n < 7:
		return conditions.LessThanWord(g.word())
	case n < 9:
		return conditions.OrOf(conditions.EqualToWord(g.word()), conditions.EqualToWord(g.word()))
	default:
		key := roles.MustEncodeKey(fmt.Sprintf("ALLOWANCE_%d", len(g.allowances)))
		g.allowances = append(g.allowances, key)
		return conditions.WithinAllowanceKey(key)
	}
}

// condition scopes the calldata of signature, or returns nil when every
// argument was left unconstrained.
func (g *generator) condition(signature string) (*conditions.Condition, error) {
	method, err := abishape.MethodFromSignature(signature)
	if err != nil {
		return nil, err
	}
	shape := abishape.FromMethod(method)

	scoped := false
	children := make([]conditions.Condition, 0, len(shape.Positional()))
	for _, arg := range shape.Positional() {
		if arg.Kind != abishape.Atomic || chance(g.f, 30) {
			children = append(children, arg.Skeleton())
			continue
		}
		child := g.staticLeaf(arg)
		if child.Operator != conditions.Pass {
			scoped = true
		}
		children = append(children, child)
	}
	if !scoped {
		return nil, nil
	}
	c := conditions.CalldataMatches(children...)
	return &c, nil
}

func (g *generator) execOptions() []permissions.Option {
	var opts []permissions.Option
	if chance(g.f, 20) {
		opts = append(opts, permissions.WithSend())
	}
	if chance(g.f, 5) {
		opts = append(opts, permissions.WithDelegateCall())
	}
	return opts
}

func (g *generator) targetPermissions() ([]permissions.Permission, error) {
	target := g.address()
	if chance(g.f, 25) {
		return []permissions.Permission{permissions.AllowTarget(target, g.execOptions()...)}, nil
	}

	remaining := append([]string(nil), signatures...)
	var perms []permissions.Permission
	for n := g.f.IntRange(1, 3); n > 0; n-- {
		i := g.f.IntRange(0, len(remaining)-1)
		signature := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)

		cond, err := g.condition(signature)
		if err != nil {
			return nil, err
		}
		perms = append(perms, permissions.AllowSignature(target, signature, cond, g.execOptions()...))
	}
	return perms, nil
}

func generateDesired(f *gofakeit.Faker, numRoles, targetsPerRole int) (runtime.Desired, error) {
	g := &generator{f: f}

	var desired runtime.Desired
	for i := 0; i < numRoles; i++ {
		role := runtime.DesiredRole{Key: g.roleKey(i + 1)}
		for m := f.IntRange(1, 3); m > 0; m-- {
			role.Members = append(role.Members, g.address())
		}

		var perms []permissions.Permission
		for t := 0; t < targetsPerRole; t++ {
			tp, err := g.targetPermissions()
			if err != nil {
				return runtime.Desired{}, fmt.Errorf("role %s: %w", role.Key, err)
			}
			perms = append(perms, tp...)
		}
		role.PermissionSets = []permissions.PermissionSet{{Permissions: perms}}
		desired.Roles = append(desired.Roles, role)
	}

	for _, key := range g.allowances {
		desired.Allowances = append(desired.Allowances, roles.Allowance{
			Key:       key,
			Balance:   uint256.NewInt(uint64(f.IntRange(1, 1_000_000))),
			MaxRefill: uint256.NewInt(1_000_000),
			Refill:    uint256.NewInt(uint64(f.IntRange(1, 1000))),
			Period:    86400,
		})
	}
	return desired, nil
}

func writeDesiredToFile(desired runtime.Desired, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(desired)
}

func main() {
	opts, err := parseFlags(os.Args)
	if err != nil {
		fmt.Printf("Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	desired, err := generateDesired(gofakeit.New(opts.seed), opts.roles, opts.targets)
	if err != nil {
		fmt.Printf("Error generating permissions: %v\n", err)
		os.Exit(1)
	}

	if err := writeDesiredToFile(desired, opts.output); err != nil {
		fmt.Printf("Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d roles with %d allowances (seed %d). Saved to %s\n", len(desired.Roles), len(desired.Allowances), opts.seed, opts.output)
}
