package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FelixNg1022/agent-workflow/internal/api"
	"github.com/FelixNg1022/agent-workflow/internal/flow"
	"github.com/FelixNg1022/agent-workflow/internal/genai"
	"github.com/FelixNg1022/agent-workflow/internal/lockfile"
	"github.com/FelixNg1022/agent-workflow/internal/messaging"
	"github.com/FelixNg1022/agent-workflow/internal/recovery"
	"github.com/FelixNg1022/agent-workflow/internal/scheduler"
	"github.com/FelixNg1022/agent-workflow/internal/store"
	"github.com/FelixNg1022/agent-workflow/internal/twiliowhatsapp"
	"github.com/FelixNg1022/agent-workflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for engine state data
	DefaultStateDir = "/var/lib/agent-workflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "agent-workflow.db"
	// DefaultInactivityTimeout is how long a conversation may await a reply
	// before the sweep escalates it.
	DefaultInactivityTimeout = 72 * time.Hour
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Single-instance guard: two engines sharing a store would race on
	// conversation state.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire instance lock", "error", err, "state_dir", *flags.stateDir)
		os.Exit(1)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Error("Failed to release instance lock", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("Engine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Engine exited successfully")
}

// run wires the modules together and blocks until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	msgService := messaging.NewTwilioService(buildTwilioClient(flags))
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := msgService.Stop(); err != nil {
			slog.Error("Failed to stop messaging service", "error", err)
		}
	}()

	driver := flow.NewDriver(st, msgService, buildDriverOptions(flags)...)

	respHandler := messaging.NewResponseHandler(msgService, st)
	respHandler.Start(ctx)

	// Recover persisted state before accepting traffic: escalate interrupted
	// cycles and re-attach reply hooks for live conversations.
	recoveryMgr := recovery.NewManager(st)
	recoveryMgr.Register(recovery.NewConversationRecovery(driver, respHandler,
		func(conversationID string) messaging.ResponseAction {
			return messaging.CreateWorkflowHook(conversationID, driver, msgService)
		}))
	recoveryMgr.Register(recovery.EscalationSummary{})
	if err := recoveryMgr.RecoverAll(ctx); err != nil {
		slog.Warn("Recovery completed with errors, continuing", "error", err)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	sweeper := scheduler.NewSweeper(driver, *flags.inactivityTimeout)
	if err := sweeper.Register(sched, *flags.sweepCron); err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(driver, st, msgService, respHandler, msgService, apiOpts...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL       string
	StateDir          string
	OpenAIKey         string
	APIAddr           string
	SweepCron         string
	InactivityTimeout time.Duration
	TwilioSID         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir          *string
	dbDSN             *string
	openaiKey         *string
	apiAddr           *string
	sweepCron         *string
	inactivityTimeout *time.Duration
	twilioSID         string
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
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          os.Getenv("AGENT_WORKFLOW_STATE_DIR"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		APIAddr:           os.Getenv("API_ADDR"),
		SweepCron:         util.GetEnvOrDefault("SWEEP_SCHEDULE", scheduler.DefaultSweepSchedule),
		InactivityTimeout: util.ParseDurationEnv("INACTIVITY_TIMEOUT", DefaultInactivityTimeout),
		TwilioSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AGENT_WORKFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AGENT_WORKFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SWEEP_SCHEDULE", config.SweepCron,
		"INACTIVITY_TIMEOUT", config.InactivityTimeout,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:          flag.String("state-dir", config.StateDir, "state directory for engine data (overrides $AGENT_WORKFLOW_STATE_DIR)"),
		dbDSN:             flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		openaiKey:         flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:           flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepCron:         flag.String("sweep-cron", config.SweepCron, "cron schedule for the inactivity sweep (overrides $SWEEP_SCHEDULE)"),
		inactivityTimeout: flag.Duration("inactivity-timeout", config.InactivityTimeout, "how long to await a reply before escalating (overrides $INACTIVITY_TIMEOUT)"),
		twilioSID:         config.TwilioSID,
	}

	flag.Parse()

	// Re-derive the default SQLite path when only the state directory changed.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"sweepCron", *flags.sweepCron,
		"inactivityTimeout", *flags.inactivityTimeout)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore selects the store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Info("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildTwilioClient returns the real Twilio client when credentials are
// configured, and the mock transport otherwise so the engine stays usable in
// development.
func buildTwilioClient(flags Flags) twiliowhatsapp.Sender {
	if flags.twilioSID == "" {
		slog.Warn("TWILIO_ACCOUNT_SID not set, using mock messaging transport")
		return twiliowhatsapp.NewMockClient()
	}
	client, err := twiliowhatsapp.NewClient()
	if err != nil {
		slog.Error("Failed to create Twilio client, falling back to mock transport", "error", err)
		return twiliowhatsapp.NewMockClient()
	}
	return client
}

// buildDriverOptions attaches the GenAI content pipeline when an API key is
// configured; otherwise the driver falls back to its static catalog.
func buildDriverOptions(flags Flags) []flow.DriverOption {
	opts := []flow.DriverOption{flow.WithEscalationNotifier(flow.LogNotifier{})}
	if *flags.openaiKey == "" {
		slog.Info("No OpenAI API key configured, using static message catalog")
		return opts
	}
	client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Error("Failed to create GenAI client, using static message catalog", "error", err)
		return opts
	}
	return append(opts,
		flow.WithContentSource(client),
		flow.WithPolisher(client),
		flow.WithQuestionAnswerer(client),
		flow.WithClassifier(genai.NewIntentClassifier(client, flow.NewRuleClassifier())),
	)
}
