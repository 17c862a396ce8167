package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeboard/internal/config"
)

var loaderEnv = []string{
	config.EnvConfigFile,
	"JUDGEBOARD_ADDR",
	"JUDGEBOARD_DATA_DIR",
	"JUDGEBOARD_SAVE_DEBOUNCE_MS",
	"JUDGEBOARD_SEND_QUEUE_SIZE",
}

// resetEnv clears every variable the loader tests touch. Convey re-enters the
// outer scope once per leaf, so this runs before each path.
func resetEnv() {
	for _, k := range loaderEnv {
		_ = os.Unsetenv(k)
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "judgeboard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Cleanup(resetEnv)

	Convey("Load layers defaults, file and environment", t, func() {
		resetEnv()
		ctx := context.Background()

		Convey("With nothing set the defaults come back", func() {
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.DataDir, ShouldEqual, "data")
			So(cfg.SendQueueSize, ShouldEqual, 256)
			So(cfg.HeartbeatTimeoutMS, ShouldEqual, 90_000)
		})

		Convey("Environment values replace defaults", func() {
			os.Setenv("JUDGEBOARD_ADDR", ":8080")
			os.Setenv("JUDGEBOARD_DATA_DIR", "/tmp/jb")
			os.Setenv("JUDGEBOARD_SAVE_DEBOUNCE_MS", "250")
			os.Setenv("JUDGEBOARD_SEND_QUEUE_SIZE", "64")

			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.DataDir, ShouldEqual, "/tmp/jb")
			So(cfg.SaveDebounceMS, ShouldEqual, 250)
			So(cfg.SendQueueSize, ShouldEqual, 64)
		})

		Convey("A YAML file is merged over defaults", func() {
			os.Setenv(config.EnvConfigFile, writeYAML(t, `
# scoring night
addr: ":9090"
log_format: json
backup_retention: 3
heartbeat_interval_ms: 1000
heartbeat_timeout_ms: 3000
`))
			cfg, err := config.Load(ctx)
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9090")
			So(cfg.LogFormat, ShouldEqual, "json")
			So(cfg.BackupRetention, ShouldEqual, 3)
			So(cfg.HeartbeatIntervalMS, ShouldEqual, 1000)
			So(cfg.HeartbeatTimeout().Seconds(), ShouldEqual, 3)
			So(cfg.PrimaryFile, ShouldEqual, "data.json")

			Convey("and the environment still wins over the file", func() {
				os.Setenv("JUDGEBOARD_ADDR", ":8080")
				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8080")
				So(cfg.BackupRetention, ShouldEqual, 3)
			})
		})

		Convey("Broken sources fail the load", func() {
			cases := []struct {
				name    string
				setup   func()
				target  error
				message string
			}{
				{
					name:   "malformed yaml",
					setup:  func() { os.Setenv(config.EnvConfigFile, writeYAML(t, "invalid: yaml: content: [")) },
					target: config.ErrLoadConfig,
				},
				{
					name:   "missing file",
					setup:  func() { os.Setenv(config.EnvConfigFile, "/non/existent/judgeboard.yaml") },
					target: config.ErrLoadConfig,
				},
				{
					name:    "empty addr",
					setup:   func() { os.Setenv(config.EnvConfigFile, writeYAML(t, "addr: \"\"\n")) },
					target:  config.ErrInvalidConfig,
					message: "addr must not be empty",
				},
				{
					name:   "non-numeric queue size",
					setup:  func() { os.Setenv("JUDGEBOARD_SEND_QUEUE_SIZE", "invalid") },
					target: config.ErrLoadConfig,
				},
			}
			for _, tc := range cases {
				resetEnv()
				tc.setup()
				cfg, err := config.Load(ctx)
				So(cfg, ShouldBeNil)
				So(errors.Is(err, tc.target), ShouldBeTrue)
				if tc.message != "" {
					So(err.Error(), ShouldContainSubstring, tc.message)
				}
			}
		})
	})
}
