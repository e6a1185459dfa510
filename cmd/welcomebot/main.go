package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdg-ntpu/welcomebot/internal/api"
	"github.com/gdg-ntpu/welcomebot/internal/flow"
	"github.com/gdg-ntpu/welcomebot/internal/genai"
	"github.com/gdg-ntpu/welcomebot/internal/notify"
	"github.com/gdg-ntpu/welcomebot/internal/qa"
	"github.com/gdg-ntpu/welcomebot/internal/quiz"
	"github.com/gdg-ntpu/welcomebot/internal/reward"
	"github.com/gdg-ntpu/welcomebot/internal/store"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for welcomebot state data
	DefaultStateDir = "/var/lib/welcomebot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "welcomebot.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "driver", *flags.dbDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create GenAI client", "error", err)
		os.Exit(1)
	}

	index, err := loadAnswerIndex(st, client)
	if err != nil {
		slog.Error("Failed to load answer index", "error", err)
		os.Exit(1)
	}
	pipeline := qa.NewPipeline(index, client)

	notifier := buildNotifier(flags)
	controller := flow.NewController(st, quiz.NewEngine(), pipeline, reward.NewIssuer(st), notifier)

	slog.Info("Bootstrapping welcomebot with configured modules")
	slog.Debug("Final configuration", "db_driver", *flags.dbDriver, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "answer_entries", index.Len())
	server := api.NewServer(controller, buildAPIOptions(flags)...)
	if err := server.Run(); err != nil {
		slog.Error("welcomebot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("welcomebot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver    string
	DbDSN       string
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDriver  *string
	dbDSN     *string
	dbName    *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:    os.Getenv("WELCOMEBOT_DB_DRIVER"),
		DbDSN:       os.Getenv("WELCOMEBOT_DB_DSN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("WELCOMEBOT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("WELCOMEBOT_ADDR"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WELCOMEBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("WELCOMEBOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// Default to DATABASE_URL if the specific DSN is not set
	if config.DbDSN == "" {
		config.DbDSN = config.DatabaseURL
		if config.DatabaseURL != "" {
			slog.Debug("Using DATABASE_URL as WELCOMEBOT_DB_DSN", "dsn_set", true)
		}
	}

	// Infer the driver from the DSN scheme when not set explicitly
	if config.DbDriver == "" {
		config.DbDriver = inferDriver(config.DbDSN)
		slog.Debug("No WELCOMEBOT_DB_DRIVER set, inferred from DSN", "driver", config.DbDriver)
	}

	// File-based default: SQLite in the state directory
	if config.DbDSN == "" && config.DbDriver == "sqlite" {
		config.DbDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DbDSN)
	}

	slog.Debug("environment variables loaded",
		"WELCOMEBOT_DB_DRIVER", config.DbDriver,
		"WELCOMEBOT_DB_DSN_SET", config.DbDSN != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WELCOMEBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"WELCOMEBOT_ADDR", config.APIAddr)

	return config
}

// inferDriver guesses the store backend from the DSN shape.
func inferDriver(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return "mongo"
	case strings.HasPrefix(dsn, "postgres://"), strings.Contains(dsn, "host="):
		return "postgres"
	default:
		return "sqlite"
	}
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for welcomebot data (overrides $WELCOMEBOT_STATE_DIR)"),
		dbDriver:  flag.String("db-driver", config.DbDriver, "store backend: memory, sqlite, postgres or mongo (overrides $WELCOMEBOT_DB_DRIVER)"),
		dbDSN:     flag.String("db-dsn", config.DbDSN, "database DSN (overrides $WELCOMEBOT_DB_DSN or $DATABASE_URL)"),
		dbName:    flag.String("db-name", "", "MongoDB database name"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $WELCOMEBOT_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDriver == "sqlite" && *flags.dbDSN == config.DbDSN && config.DbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDriver != "sqlite" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// openStore constructs the configured store backend wrapped with the
// default retry policy.
func openStore(flags Flags) (store.Store, error) {
	storeOpts := buildStoreOptions(flags)

	var (
		inner store.Store
		err   error
	)
	switch *flags.dbDriver {
	case "memory":
		inner = store.NewInMemoryStore()
	case "sqlite":
		inner, err = store.NewSQLiteStore(storeOpts...)
	case "postgres":
		inner, err = store.NewPostgresStore(storeOpts...)
	case "mongo":
		inner, err = store.NewMongoStore(storeOpts...)
	default:
		return nil, fmt.Errorf("unknown db driver %q", *flags.dbDriver)
	}
	if err != nil {
		return nil, err
	}
	return store.NewRetrying(inner, store.DefaultRetryPolicy), nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	}
	if *flags.dbName != "" {
		storeOpts = append(storeOpts, store.WithDatabase(*flags.dbName))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// buildNotifier wires the Twilio staff notifier when credentials are
// present, otherwise a logging no-op.
func buildNotifier(flags Flags) notify.Notifier {
	notifier, err := notify.NewTwilioNotifier()
	if err != nil {
		slog.Info("Twilio credentials not configured, staff escalation is log-only", "reason", err)
		return notify.NoopNotifier{}
	}
	return notifier
}

// loadAnswerIndex reads the precomputed answer vectors from the store
// and builds the in-memory retrieval index.
func loadAnswerIndex(st store.Store, embedder qa.Embedder) (*qa.Index, error) {
	vectors, err := st.ListAnswerVectors(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list answer vectors: %w", err)
	}
	if len(vectors) == 0 {
		slog.Warn("answer vector table is empty, QA will always fall back")
	}
	return qa.NewIndex(embedder, vectors), nil
}
