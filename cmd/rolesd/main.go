// roles/cmd/rolesd/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"zodiac/roles/pkg/annotations"
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/runtime"
	"zodiac/roles/pkg/store"
)

// Config represents the daemon configuration
type Config struct {
	LogLevel              string
	LogDestination        string
	RedisAddress          string
	RedisPassword         string
	RedisDB               int
	RedisChannels         []string
	ModAddress            string
	PermissionsFile       string
	AnnotationConcurrency int
	AnnotationCacheSize   int
	DashboardEnabled      bool
	DashboardPort         int
	DashboardInterval     int
}

// RolesDependencies represents the external dependencies of the daemon
type RolesDependencies struct {
	Store   store.Store
	Planner *runtime.Planner
}

// StoreFactory is an interface for creating a store
type StoreFactory interface {
	NewStore(ctx context.Context, addr, password string, db int) (store.Store, error)
}

// PlannerFactory is an interface for creating a planner
type PlannerFactory interface {
	NewPlanner(permissionsFile string, st store.Store, resolver *annotations.Resolver) (*runtime.Planner, error)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args, &RealStoreFactory{}, &RealPlannerFactory{}); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(ctx context.Context, args []string, storeFactory StoreFactory, plannerFactory PlannerFactory) error {
	config, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(config.LogLevel, config.LogDestination); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	deps, err := setupDependencies(ctx, config, storeFactory, plannerFactory)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}

	return runMainLoop(ctx, deps, config)
}

func configError(message string, fields map[string]interface{}) error {
	return logging.NewError(logging.ErrorTypeConfig, message, nil, fields)
}

func parseConfig(args []string) (*Config, error) {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configFile := flags.String("config", "", "Path to configuration file")
	if err := flags.Parse(args[1:]); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "console")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.channels", []string{store.SnapshotChannel})
	v.SetDefault("roles.permissions_file", "permissions.json")
	v.SetDefault("annotations.concurrency", 4)
	v.SetDefault("annotations.cache_size", 128)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.update_interval", 5)

	if *configFile == "" {
		v.SetConfigName("roles_config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.roles")
		v.AddConfigPath("/etc/roles")
	} else {
		v.SetConfigFile(*configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No configuration file found, using defaults")
	}

	config := &Config{
		LogLevel:              v.GetString("logging.level"),
		LogDestination:        v.GetString("logging.output"),
		RedisAddress:          v.GetString("redis.address"),
		RedisPassword:         v.GetString("redis.password"),
		RedisDB:               v.GetInt("redis.database"),
		RedisChannels:         v.GetStringSlice("redis.channels"),
		ModAddress:            v.GetString("roles.mod_address"),
		PermissionsFile:       v.GetString("roles.permissions_file"),
		AnnotationConcurrency: v.GetInt("annotations.concurrency"),
		AnnotationCacheSize:   v.GetInt("annotations.cache_size"),
		DashboardEnabled:      v.GetBool("dashboard.enabled"),
		DashboardPort:         v.GetInt("dashboard.port"),
		DashboardInterval:     v.GetInt("dashboard.update_interval"),
	}

	if config.ModAddress != "" && !common.IsHexAddress(config.ModAddress) {
		return nil, configError("invalid roles.mod_address", map[string]interface{}{"value": config.ModAddress})
	}
	if config.AnnotationCacheSize <= 0 {
		return nil, configError("annotations.cache_size must be positive", map[string]interface{}{"value": config.AnnotationCacheSize})
	}
	if config.DashboardInterval <= 0 {
		return nil, configError("dashboard.update_interval must be positive", map[string]interface{}{"value": config.DashboardInterval})
	}
	return config, nil
}

func setupDependencies(ctx context.Context, config *Config, storeFactory StoreFactory, plannerFactory PlannerFactory) (*RolesDependencies, error) {
	st, err := storeFactory.NewStore(ctx, config.RedisAddress, config.RedisPassword, config.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	cache, err := annotations.NewLRUCache(config.AnnotationCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize annotation cache: %w", err)
	}
	resolver := annotations.NewResolver(
		annotations.WithCache(cache),
		annotations.WithConcurrency(config.AnnotationConcurrency),
	)

	planner, err := plannerFactory.NewPlanner(config.PermissionsFile, st, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize planner: %w", err)
	}

	return &RolesDependencies{
		Store:   st,
		Planner: planner,
	}, nil
}

func runMainLoop(ctx context.Context, deps *RolesDependencies, config *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pubsub, err := deps.Store.Subscribe(ctx, config.RedisChannels...)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	var only *common.Address
	if config.ModAddress != "" {
		mod := common.HexToAddress(config.ModAddress)
		only = &mod
		if _, err := deps.Planner.PlanMod(ctx, mod); err != nil {
			logging.LogError(logging.Logger, err)
		}
	}

	if config.DashboardEnabled {
		dashboard := runtime.NewDashboard(deps.Planner, config.DashboardPort, time.Duration(config.DashboardInterval)*time.Second)
		go func() {
			if err := dashboard.Start(ctx); err != nil {
				logging.Logger.Error().Err(err).Msg("Dashboard failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logging.Logger.Info().Strs("channels", config.RedisChannels).Msg("Roles planner started")

	for {
		select {
		case msg := <-pubsub.Channel():
			if _, err := processMessage(ctx, deps.Planner, msg, only); err != nil {
				logging.Logger.Error().Err(err).Msg("Failed to process message")
			}
		case <-sigChan:
			logging.Logger.Info().Msg("Shutting down roles planner")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// processMessage replans the modifier announced by msg. It returns nil when
// the message concerns a modifier this daemon does not manage.
func processMessage(ctx context.Context, planner *runtime.Planner, msg *redis.Message, only *common.Address) (*runtime.PlanResult, error) {
	logging.Logger.Info().Str("channel", msg.Channel).Str("payload", msg.Payload).Msg("Received message")

	mod, err := store.ParseSnapshotMessage(msg.Payload)
	if err != nil {
		return nil, err
	}
	if only != nil && mod != *only {
		logging.Logger.Debug().Str("mod", mod.Hex()).Msg("Ignoring snapshot of unmanaged modifier")
		return nil, nil
	}

	result, err := planner.PlanMod(ctx, mod)
	if err != nil {
		return nil, err
	}
	for i, c := range result.Diff.Calls() {
		logging.Logger.Info().Str("mod", mod.Hex()).Int("index", i).Str("call", c.Name()).Msg("Planned call")
	}
	return &result, nil
}

// RealStoreFactory implements StoreFactory
type RealStoreFactory struct{}

func (f *RealStoreFactory) NewStore(ctx context.Context, addr, password string, db int) (store.Store, error) {
	st, err := store.NewRedisStore(ctx, addr, password, db)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// RealPlannerFactory implements PlannerFactory
type RealPlannerFactory struct{}

func (f *RealPlannerFactory) NewPlanner(permissionsFile string, st store.Store, resolver *annotations.Resolver) (*runtime.Planner, error) {
	return runtime.NewPlannerFromFile(permissionsFile, st, resolver)
}
