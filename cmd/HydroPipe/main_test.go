package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/HydroPipe/internal/config"
	"github.com/BTreeMap/HydroPipe/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hydropipe.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HYDROPIPE_TRANSPORT", "HYDROPIPE_STATE_DIR", "DATABASE_URL", "REDIS_URL", "TIMEZONE",
		"LOG_LEVEL", "API_ADDR", "PUBLIC_URL", "WEATHER_API_KEY", "OPENAI_API_KEY",
		"WHATSAPP_DB_DSN", "HYDROPIPE_WORKOUTS", "API_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "log_level: info\n")

	cfg, err := buildConfig([]string{"-config", path})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Transport != config.TransportHTTP {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.StateDir != "/var/lib/hydropipe" || cfg.API.Addr != ":8080" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	want := "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	if cfg.WhatsApp.DBDSN != want {
		t.Errorf("WhatsApp DSN = %q, want %q", cfg.WhatsApp.DBDSN, want)
	}
}

func TestBuildConfigPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
transport: whatsapp
state_dir: /srv/file
api:
  addr: ":7000"
workouts:
  run: 11
`)
	t.Setenv("HYDROPIPE_STATE_DIR", "/srv/env")
	t.Setenv("API_ADDR", ":7100")
	t.Setenv("HYDROPIPE_WORKOUTS", "swim=9,climb=8")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := buildConfig([]string{"-config", path, "-api-addr", ":7200", "-transport", "TWILIO"})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Transport != config.TransportTwilio {
		t.Errorf("flag should win: transport %q", cfg.Transport)
	}
	if cfg.StateDir != "/srv/env" {
		t.Errorf("env should win over file: state dir %q", cfg.StateDir)
	}
	if cfg.API.Addr != ":7200" {
		t.Errorf("flag should win over env: addr %q", cfg.API.Addr)
	}
	if cfg.Workouts["run"] != 11 || cfg.Workouts["swim"] != 9 || cfg.Workouts["climb"] != 8 {
		t.Errorf("workouts = %v", cfg.Workouts)
	}
	if len(cfg.API.AllowedOrigins) != 2 || cfg.API.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.API.AllowedOrigins)
	}
	if !strings.HasPrefix(cfg.WhatsApp.DBDSN, "file:/srv/env/") {
		t.Errorf("WhatsApp DSN should follow the state dir: %q", cfg.WhatsApp.DBDSN)
	}
}

func TestBuildConfigErrors(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "transport: http\n")

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"missing explicit file", []string{"-config", "/nonexistent/hydropipe.yaml"}, nil},
		{"unknown flag", []string{"-config", path, "-bogus"}, nil},
		{"bad transport", []string{"-config", path, "-transport", "telegram"}, nil},
		{"bad timezone", []string{"-config", path}, map[string]string{"TIMEZONE": "Nowhere/Land"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := buildConfig(tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOpenProfileStore(t *testing.T) {
	s, err := openProfileStore("")
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := s.(*store.InMemoryStore); !ok {
		t.Errorf("empty DSN gave %T", s)
	}

	dbPath := filepath.Join(t.TempDir(), "hydropipe.db")
	s, err = openProfileStore(dbPath)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*store.SQLiteStore); !ok {
		t.Errorf("file DSN gave %T", s)
	}
}

func TestOpenSessionStoreMemory(t *testing.T) {
	s, closeFn, err := openSessionStore(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*store.InMemorySessionStore); !ok {
		t.Errorf("empty URL gave %T", s)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := config.Default()
	if n := len(buildFoodOptions(cfg)); n != 0 {
		t.Errorf("food options without settings: %d", n)
	}
	cfg.Food.BaseURL = "http://food.test"
	cfg.OpenAI.APIKey = "sk-test"
	if n := len(buildFoodOptions(cfg)); n != 2 {
		t.Errorf("food options with base URL and suggester: %d", n)
	}
	if n := len(buildWeatherOptions(cfg)); n != 0 {
		t.Errorf("weather options without key: %d", n)
	}
	cfg.Weather.APIKey = "k"
	if n := len(buildWeatherOptions(cfg)); n != 1 {
		t.Errorf("weather options with key: %d", n)
	}
	cfg.WhatsApp.NumericCode = true
	cfg.WhatsApp.QRPath = "/tmp/qr.txt"
	if n := len(buildWhatsAppOptions(cfg)); n != 3 {
		t.Errorf("whatsapp options: %d", n)
	}
	if n := len(buildTwilioOptions(cfg)); n != 0 {
		t.Errorf("twilio options without credentials: %d", n)
	}
	if n := len(buildAPIOptions(cfg, nil, store.NewInMemoryStore())); n != 2 {
		t.Errorf("api options: %d", n)
	}
}

func TestNewMessagingServiceHTTP(t *testing.T) {
	cfg := config.Default()
	svc, webhook, disconnect, err := newMessagingService(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if svc != nil || webhook != nil {
		t.Errorf("http transport should not start a messaging service")
	}
	disconnect()
}

func TestRunHTTPShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.API.Addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg); err != nil {
		t.Errorf("run with cancelled context: %v", err)
	}
}
