package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BTreeMap/HydroPipe/internal/api"
	"github.com/BTreeMap/HydroPipe/internal/chart"
	"github.com/BTreeMap/HydroPipe/internal/config"
	"github.com/BTreeMap/HydroPipe/internal/flow"
	"github.com/BTreeMap/HydroPipe/internal/food"
	"github.com/BTreeMap/HydroPipe/internal/genai"
	"github.com/BTreeMap/HydroPipe/internal/goals"
	"github.com/BTreeMap/HydroPipe/internal/lockfile"
	"github.com/BTreeMap/HydroPipe/internal/messaging"
	"github.com/BTreeMap/HydroPipe/internal/store"
	"github.com/BTreeMap/HydroPipe/internal/tracker"
	"github.com/BTreeMap/HydroPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/HydroPipe/internal/util"
	"github.com/BTreeMap/HydroPipe/internal/weather"
	"github.com/BTreeMap/HydroPipe/internal/whatsapp"
	"github.com/joho/godotenv"
)

// DefaultWhatsAppDBFileName is the whatsmeow device database inside the state directory.
const DefaultWhatsAppDBFileName = whatsapp.DefaultDBFile

func main() {
	initializeLogger(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg, err := buildConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}
	initializeLogger(cfg.LogLevel)

	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping HydroPipe", "transport", cfg.Transport, "state_dir", cfg.StateDir)
	if err := run(ctx, cfg); err != nil {
		slog.Error("HydroPipe failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("HydroPipe exited successfully")
}

// Flags holds command line flag values. Empty values leave the configuration untouched.
type Flags struct {
	configPath  *string
	transport   *string
	stateDir    *string
	dbDSN       *string
	redisURL    *string
	apiAddr     *string
	publicURL   *string
	timezone    *string
	logLevel    *string
	openaiKey   *string
	weatherKey  *string
	waDBDSN     *string
	qrOutput    *string
	numericCode *bool
}

// initializeLogger installs a text handler on stdout at the given level.
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseCommandLineFlags parses args into Flags.
func parseCommandLineFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("hydropipe", flag.ContinueOnError)
	flags := Flags{
		configPath:  fs.String("config", "", "path to YAML config file (default: search ./hydropipe.yaml, ~/.config/hydropipe, /etc/hydropipe)"),
		transport:   fs.String("transport", "", "messaging transport: whatsapp, twilio or http (overrides $HYDROPIPE_TRANSPORT)"),
		stateDir:    fs.String("state-dir", "", "state directory (overrides $HYDROPIPE_STATE_DIR)"),
		dbDSN:       fs.String("db-dsn", "", "profile store DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)"),
		redisURL:    fs.String("redis-url", "", "Redis URL for conversation sessions (overrides $REDIS_URL)"),
		apiAddr:     fs.String("api-addr", "", "API server address (overrides $API_ADDR)"),
		publicURL:   fs.String("public-url", "", "externally reachable base URL of the API (overrides $PUBLIC_URL)"),
		timezone:    fs.String("timezone", "", "IANA timezone that decides the current day (overrides $TIMEZONE)"),
		logLevel:    fs.String("log-level", "", "debug, info, warn or error (overrides $LOG_LEVEL)"),
		openaiKey:   fs.String("openai-api-key", "", "OpenAI API key for food name suggestions (overrides $OPENAI_API_KEY)"),
		weatherKey:  fs.String("weather-api-key", "", "OpenWeatherMap API key (overrides $WEATHER_API_KEY)"),
		waDBDSN:     fs.String("whatsapp-db-dsn", "", "whatsmeow device database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:    fs.String("qr-output", "", "path to write the login QR code (overrides $WHATSAPP_QR_PATH)"),
		numericCode: fs.Bool("numeric", false, "print the raw pairing code instead of a QR code"),
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return flags, nil
}

// buildConfig layers the config file, the environment and flags, then validates.
func buildConfig(args []string) (*config.Config, error) {
	flags, err := parseCommandLineFlags(args)
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	path, err := config.FindConfig(*flags.configPath)
	switch {
	case err == nil:
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	case errors.Is(err, config.ErrNoConfig):
		slog.Debug("No config file found, using environment and flags")
	default:
		return nil, err
	}

	loadEnvironmentConfig(cfg)
	applyFlags(cfg, flags)

	cfg.Transport = strings.ToLower(cfg.Transport)
	if cfg.WhatsApp.DBDSN == "" {
		cfg.WhatsApp.DBDSN = "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvironmentConfig overrides cfg with any environment variables that are set.
func loadEnvironmentConfig(cfg *config.Config) {
	setString := func(dst *string, key string) {
		if v := util.GetEnv(key, ""); v != "" {
			slog.Debug("Environment override", "key", key)
			*dst = v
		}
	}
	setString(&cfg.Transport, "HYDROPIPE_TRANSPORT")
	setString(&cfg.StateDir, "HYDROPIPE_STATE_DIR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.API.Addr, "API_ADDR")
	setString(&cfg.API.PublicURL, "PUBLIC_URL")
	setString(&cfg.Weather.APIKey, "WEATHER_API_KEY")
	setString(&cfg.Weather.BaseURL, "WEATHER_BASE_URL")
	setString(&cfg.Food.BaseURL, "FOOD_BASE_URL")
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Twilio.From, "TWILIO_FROM_NUMBER")
	setString(&cfg.WhatsApp.DBDSN, "WHATSAPP_DB_DSN")
	setString(&cfg.WhatsApp.QRPath, "WHATSAPP_QR_PATH")

	cfg.API.AllowedOrigins = util.ParseListEnv("API_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.WhatsApp.NumericCode = util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", cfg.WhatsApp.NumericCode)

	if overrides := util.ParseFloatMapEnv("HYDROPIPE_WORKOUTS"); len(overrides) > 0 {
		if cfg.Workouts == nil {
			cfg.Workouts = make(map[string]float64, len(overrides))
		}
		for kind, rate := range overrides {
			cfg.Workouts[kind] = rate
		}
	}
}

// applyFlags copies every non-empty flag into cfg.
func applyFlags(cfg *config.Config, flags Flags) {
	set := func(dst *string, v *string) {
		if v != nil && *v != "" {
			*dst = *v
		}
	}
	set(&cfg.Transport, flags.transport)
	set(&cfg.StateDir, flags.stateDir)
	set(&cfg.DatabaseURL, flags.dbDSN)
	set(&cfg.RedisURL, flags.redisURL)
	set(&cfg.API.Addr, flags.apiAddr)
	set(&cfg.API.PublicURL, flags.publicURL)
	set(&cfg.Timezone, flags.timezone)
	set(&cfg.LogLevel, flags.logLevel)
	set(&cfg.OpenAI.APIKey, flags.openaiKey)
	set(&cfg.Weather.APIKey, flags.weatherKey)
	set(&cfg.WhatsApp.DBDSN, flags.waDBDSN)
	set(&cfg.WhatsApp.QRPath, flags.qrOutput)
	if flags.numericCode != nil && *flags.numericCode {
		cfg.WhatsApp.NumericCode = true
	}
}

// openProfileStore picks the profile backend from the DSN; empty means memory.
func openProfileStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == store.DSNTypePostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// openSessionStore picks the session backend; an empty URL means memory.
// The returned close function is never nil.
func openSessionStore(ctx context.Context, url string) (store.SessionStore, func() error, error) {
	if url == "" {
		slog.Debug("No REDIS_URL provided, using in-memory session store")
		return store.NewInMemorySessionStore(), func() error { return nil }, nil
	}
	rs, err := store.NewRedisSessionStore(ctx, url, util.ParseDurationEnv("SESSION_TTL", store.DefaultSessionTTL))
	if err != nil {
		return nil, nil, err
	}
	return rs, rs.Close, nil
}

// buildWeatherOptions constructs weather client options.
func buildWeatherOptions(cfg *config.Config) []weather.Option {
	var opts []weather.Option
	if cfg.Weather.APIKey != "" {
		opts = append(opts, weather.WithAPIKey(cfg.Weather.APIKey))
	} else {
		slog.Warn("No weather API key set; goals will use the fallback temperature")
	}
	if cfg.Weather.BaseURL != "" {
		opts = append(opts, weather.WithBaseURL(cfg.Weather.BaseURL))
	}
	return opts
}

// buildFoodOptions constructs food client options, enabling suggestions when OpenAI is configured.
func buildFoodOptions(cfg *config.Config) []food.Option {
	var opts []food.Option
	if cfg.Food.BaseURL != "" {
		opts = append(opts, food.WithBaseURL(cfg.Food.BaseURL))
	}
	if cfg.OpenAI.APIKey == "" {
		slog.Debug("No OpenAI API key set, food name suggestions disabled")
		return opts
	}
	genaiOpts := []genai.Option{genai.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.Model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(cfg.OpenAI.Model))
	}
	gc, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client unavailable, food name suggestions disabled", "error", err)
		return opts
	}
	return append(opts, food.WithSuggester(gc))
}

// buildWhatsAppOptions constructs whatsmeow client options.
func buildWhatsAppOptions(cfg *config.Config) []whatsapp.Option {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsApp.DBDSN)}
	if cfg.WhatsApp.QRPath != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsApp.QRPath))
	}
	if cfg.WhatsApp.NumericCode {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if cfg.LogLevel == "debug" {
		opts = append(opts, whatsapp.WithLogLevel("DEBUG"))
	}
	return opts
}

// buildTwilioOptions constructs Twilio client options; unset values fall back to the environment.
func buildTwilioOptions(cfg *config.Config) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if cfg.Twilio.AccountSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(cfg.Twilio.AccountSID))
	}
	if cfg.Twilio.AuthToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(cfg.Twilio.AuthToken))
	}
	if cfg.Twilio.From != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(cfg.Twilio.From))
	}
	return opts
}

// buildAPIOptions constructs API server options shared by every transport.
func buildAPIOptions(cfg *config.Config, renderer flow.ChartRenderer, receipts store.ReceiptStore) []api.Option {
	opts := []api.Option{api.WithReceiptStore(receipts)}
	if cfg.API.Addr != "" {
		opts = append(opts, api.WithAddr(cfg.API.Addr))
	}
	if len(cfg.API.AllowedOrigins) > 0 {
		opts = append(opts, api.WithAllowedOrigins(cfg.API.AllowedOrigins))
	}
	if renderer != nil {
		opts = append(opts, api.WithChartRenderer(renderer))
	}
	return opts
}

// newMessagingService connects the configured chat transport. For Twilio it
// also returns the webhook to mount on the API server.
func newMessagingService(ctx context.Context, cfg *config.Config) (messaging.Service, api.Option, func(), error) {
	switch cfg.Transport {
	case config.TransportWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(cfg)...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("whatsapp: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, client.Disconnect, nil
	case config.TransportTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(cfg)...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("twilio: %w", err)
		}
		var opts []messaging.TwilioOption
		if cfg.API.PublicURL != "" {
			opts = append(opts, messaging.WithMediaBaseURL(cfg.API.PublicURL))
		} else {
			slog.Warn("No PUBLIC_URL set; charts will be sent as text over Twilio")
		}
		svc := messaging.NewTwilioService(client, opts...)
		return svc, api.WithTwilioWebhook(svc.TwilioWebhookHandler), func() {}, nil
	default:
		return nil, nil, func() {}, nil
	}
}

// run wires every component and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	profiles, err := openProfileStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("profile store: %w", err)
	}
	defer profiles.Close()

	sessions, closeSessions, err := openSessionStore(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer closeSessions()

	tr := tracker.New(weather.NewClient(buildWeatherOptions(cfg)...), tracker.WithLocation(loc))

	engineOpts := []flow.Option{
		flow.WithCatalog(goals.NewCatalog(cfg.Workouts)),
		flow.WithFoodLookup(food.NewClient(buildFoodOptions(cfg)...)),
	}
	var renderer flow.ChartRenderer
	if r, err := chart.NewRenderer(); err != nil {
		slog.Warn("Chart renderer unavailable, /charts will reply with text", "error", err)
	} else {
		renderer = r
		engineOpts = append(engineOpts, flow.WithChartRenderer(r))
	}
	engine := flow.NewEngine(profiles, sessions, tr, engineOpts...)

	svc, webhook, disconnect, err := newMessagingService(ctx, cfg)
	if err != nil {
		return err
	}
	defer disconnect()

	apiOpts := buildAPIOptions(cfg, renderer, profiles)
	if webhook != nil {
		apiOpts = append(apiOpts, webhook)
	}
	server := api.NewServer(engine, profiles, tr, apiOpts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- server.Run(ctx) }()

	if svc != nil {
		if err := svc.Start(ctx); err != nil {
			cancel()
			<-errCh
			return fmt.Errorf("start %s service: %w", cfg.Transport, err)
		}
		router := messaging.NewRouter(svc, engine, messaging.WithReceiptStore(profiles))
		running++
		go func() {
			err := router.Run(ctx)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			errCh <- err
		}()
	}

	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	if svc != nil {
		if err := svc.Stop(); err != nil {
			slog.Warn("Messaging service stop failed", "error", err)
		}
	}
	return firstErr
}
