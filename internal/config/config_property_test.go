package config

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationEnvKeys lists every key parsed as a time.Duration.
var durationEnvKeys = []string{
	"CLOSE_INTERVAL",
	"WEBHOOK_TIMEOUT",
	"BID_SLOT_TIMEOUT",
	"ANTI_SNIPING_WINDOW",
	"READ_TIMEOUT",
	"WRITE_TIMEOUT",
	"IDLE_TIMEOUT",
	"SHUTDOWN_TIMEOUT",
}

// allEnvKeys is every key Load reads.
var allEnvKeys = append([]string{
	"CONFIG_FILE", "PORT", "LOG_LEVEL", "EVENT_ENCODING", "BID_MAX_RETRIES",
	"ANTI_SNIPING_ENABLED", "ANTI_SNIPING_MAX_EXTENSIONS", "STORAGE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
}, durationEnvKeys...)

func unsetAllConfigEnv() {
	for _, key := range allEnvKeys {
		os.Unsetenv(key)
	}
}

// env records the variables a property run sets, so expectations can be
// computed from the same draws.
type env map[string]string

func (e env) set(key, value string) {
	e[key] = value
	os.Setenv(key, value)
}

// maybe draws from gen, or "" meaning the key stays unset.
func maybe(t *rapid.T, gen *rapid.Generator[string], label string) string {
	return rapid.OneOf(rapid.Just(""), gen).Draw(t, label)
}

func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

func genIntString(lo, hi int) *rapid.Generator[string] {
	return rapid.Map(rapid.IntRange(lo, hi), strconv.Itoa)
}

func intOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, _ := strconv.Atoi(s)
	return n
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, _ := time.ParseDuration(s)
	return d
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()
		e := env{}

		if v := maybe(t, genIntString(1, 65535), "port"); v != "" {
			e.set("PORT", v)
		}
		if v := maybe(t, rapid.SampledFrom(validLogLevels), "logLevel"); v != "" {
			e.set("LOG_LEVEL", v)
		}
		if v := maybe(t, rapid.SampledFrom([]string{"json", "cbor"}), "encoding"); v != "" {
			e.set("EVENT_ENCODING", v)
		}
		if v := maybe(t, genIntString(1, 20), "retries"); v != "" {
			e.set("BID_MAX_RETRIES", v)
		}
		if v := maybe(t, rapid.SampledFrom([]string{"true", "false", "1", "0", "TRUE"}), "antiSniping"); v != "" {
			e.set("ANTI_SNIPING_ENABLED", v)
		}
		if v := maybe(t, genIntString(0, 50), "maxExtensions"); v != "" {
			e.set("ANTI_SNIPING_MAX_EXTENSIONS", v)
		}
		if v := maybe(t, rapid.SampledFrom([]string{StorageMemory, StoragePostgres}), "storage"); v != "" {
			e.set("STORAGE", v)
			if v == StoragePostgres {
				e.set("DATABASE_URL", "postgres://localhost:5432/bids")
			}
		}
		if rapid.Bool().Draw(t, "pool") {
			maxConns := rapid.IntRange(1, 50).Draw(t, "maxConns")
			e.set("DB_MAX_CONNS", strconv.Itoa(maxConns))
			e.set("DB_MIN_CONNS", strconv.Itoa(rapid.IntRange(0, maxConns).Draw(t, "minConns")))
		}
		for _, key := range durationEnvKeys {
			if v := maybe(t, genDurationString(), key); v != "" {
				e.set(key, v)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs %v: %v", e, err)
		}

		ints := []struct {
			key string
			got int
			def int
		}{
			{"PORT", cfg.Port, 8080},
			{"BID_MAX_RETRIES", cfg.BidMaxRetries, 5},
			{"ANTI_SNIPING_MAX_EXTENSIONS", cfg.AntiSnipingMaxExtensions, 10},
			{"DB_MAX_CONNS", cfg.DBMaxConns, 10},
			{"DB_MIN_CONNS", cfg.DBMinConns, 2},
		}
		for _, f := range ints {
			if want := intOr(e[f.key], f.def); f.got != want {
				t.Fatalf("%s = %d, want %d", f.key, f.got, want)
			}
		}

		strs := []struct {
			key string
			got string
			def string
		}{
			{"LOG_LEVEL", cfg.LogLevel, "info"},
			{"EVENT_ENCODING", cfg.EventEncoding, "json"},
			{"STORAGE", cfg.Storage, StorageMemory},
		}
		for _, f := range strs {
			want := e[f.key]
			if want == "" {
				want = f.def
			}
			if f.got != want {
				t.Fatalf("%s = %q, want %q", f.key, f.got, want)
			}
		}

		wantAntiSniping := false
		if v := e["ANTI_SNIPING_ENABLED"]; v != "" {
			wantAntiSniping, _ = strconv.ParseBool(v)
		}
		if cfg.AntiSnipingEnabled != wantAntiSniping {
			t.Fatalf("AntiSnipingEnabled = %v, want %v", cfg.AntiSnipingEnabled, wantAntiSniping)
		}

		durations := []struct {
			key string
			got time.Duration
			def time.Duration
		}{
			{"CLOSE_INTERVAL", cfg.CloseInterval, 1 * time.Second},
			{"WEBHOOK_TIMEOUT", cfg.WebhookTimeout, 5 * time.Second},
			{"BID_SLOT_TIMEOUT", cfg.BidSlotTimeout, 2 * time.Second},
			{"ANTI_SNIPING_WINDOW", cfg.AntiSnipingWindow, 2 * time.Minute},
			{"READ_TIMEOUT", cfg.ReadTimeout, 5 * time.Second},
			{"WRITE_TIMEOUT", cfg.WriteTimeout, 10 * time.Second},
			{"IDLE_TIMEOUT", cfg.IdleTimeout, 60 * time.Second},
			{"SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, 10 * time.Second},
		}
		for _, f := range durations {
			if want := durationOr(e[f.key], f.def); f.got != want {
				t.Fatalf("%s = %v, want %v", f.key, f.got, want)
			}
		}
	})
}

func TestProperty_UnknownChoicesReturnError(t *testing.T) {
	choices := map[string][]string{
		"LOG_LEVEL":      validLogLevels,
		"EVENT_ENCODING": {"json", "cbor"},
		"STORAGE":        {StorageMemory, StoragePostgres},
	}
	for key, valid := range choices {
		t.Run(key, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				unsetAllConfigEnv()
				defer unsetAllConfigEnv()

				value := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
					for _, v := range valid {
						if s == v {
							return false
						}
					}
					return true
				}).Draw(t, "value")
				os.Setenv(key, value)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should reject %s=%q", key, value)
				}
			})
		})
	}
}

func TestProperty_CountsOutOfRangeReturnError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		switch rapid.IntRange(0, 2).Draw(t, "case") {
		case 0:
			os.Setenv("BID_MAX_RETRIES", strconv.Itoa(rapid.IntRange(-100, 0).Draw(t, "retries")))
		case 1:
			os.Setenv("ANTI_SNIPING_MAX_EXTENSIONS", strconv.Itoa(rapid.IntRange(-100, -1).Draw(t, "extensions")))
		case 2:
			maxConns := rapid.IntRange(1, 50).Draw(t, "maxConns")
			os.Setenv("DB_MAX_CONNS", strconv.Itoa(maxConns))
			os.Setenv("DB_MIN_CONNS", strconv.Itoa(maxConns+rapid.IntRange(1, 50).Draw(t, "excess")))
		}

		if _, err := Load(); err == nil {
			t.Fatal("Load() should reject out-of-range counts")
		}
	})
}

func TestProperty_UnparsableValuesReturnError(t *testing.T) {
	intKeys := []string{"PORT", "BID_MAX_RETRIES", "ANTI_SNIPING_MAX_EXTENSIONS", "DB_MAX_CONNS", "DB_MIN_CONNS"}

	rapid.Check(t, func(t *rapid.T) {
		unsetAllConfigEnv()
		defer unsetAllConfigEnv()

		var key, value string
		switch rapid.IntRange(0, 2).Draw(t, "kind") {
		case 0:
			key = rapid.SampledFrom(intKeys).Draw(t, "intKey")
			value = rapid.OneOf(
				rapid.StringMatching(`[a-zA-Z]{1,10}`),
				rapid.Just("12.5"),
				rapid.Just("1.0e2"),
			).Draw(t, "notInt")
		case 1:
			key = rapid.SampledFrom(durationEnvKeys).Draw(t, "durationKey")
			value = rapid.OneOf(
				rapid.StringMatching(`[a-zA-Z]{2,10}`),
				rapid.Just("5x"),
				rapid.Just("abc123"),
			).Filter(func(s string) bool {
				_, err := time.ParseDuration(s)
				return err != nil
			}).Draw(t, "notDuration")
		case 2:
			key = "ANTI_SNIPING_ENABLED"
			value = rapid.StringMatching(`[a-z]{2,10}`).Filter(func(s string) bool {
				_, err := strconv.ParseBool(s)
				return err != nil
			}).Draw(t, "notBool")
		}
		os.Setenv(key, value)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should reject %s=%q", key, value)
		}
	})
}
