package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var runnerEnvKeys = []string{
	"BRINGTEN_HOME_URL", "BRINGTEN_TITLE_TEXT", "BRINGTEN_NO_RESULTS_TEXT",
	"BRINGTEN_HOST_NAME", "BRINGTEN_ROOM_NAME", "BRINGTEN_JOINERS",
	"BRINGTEN_DRIVER", "BRINGTEN_CHANNEL", "BRINGTEN_BROWSER_BIN",
	"BRINGTEN_HEADLESS", "BRINGTEN_DETACH", "BRINGTEN_WAIT_TIMEOUT",
	"BRINGTEN_SETTLE_DELAY", "BRINGTEN_ACTION_TIMEOUT", "BRINGTEN_STEP_RATE",
	"BRINGTEN_STEP_BURST", "BRINGTEN_ARTIFACT_DIR", "AWS_ENDPOINT_URL_S3",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "BUCKET_NAME",
	"S3_PUBLIC_URL", "S3_PATH_STYLE", "LOG_LEVEL", "LISTEN_ADDR",
}

// clearRunnerEnv blanks every variable the loader reads so the host
// environment cannot leak into a test.
func clearRunnerEnv(t *testing.T) {
	t.Helper()
	for _, k := range runnerEnvKeys {
		t.Setenv(k, "")
	}
}

func validTestConfig() Config {
	return Config{
		HomeURL:       DefaultHomeURL,
		TitleText:     DefaultTitleText,
		NoResultsText: DefaultNoResultsText,
		HostName:      DefaultHostName,
		RoomName:      DefaultRoomName,
		Joiners:       append([]string(nil), DefaultJoiners...),
		Driver:        DriverPlaywright,
		WaitTimeout:   2 * time.Second,
		SettleDelay:   time.Second,
		ActionTimeout: 5 * time.Second,
	}
}

func TestLoadConfig_DefaultsMatchOriginalRun(t *testing.T) {
	clearRunnerEnv(t)

	cfg, err := LoadConfig(Flags{})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HomeURL != "http://localhost:5173/" {
		t.Fatalf("HomeURL = %q", cfg.HomeURL)
	}
	if cfg.HostName != "Akil" || cfg.RoomName != "Game Grumps" {
		t.Fatalf("host/room = %q/%q", cfg.HostName, cfg.RoomName)
	}
	if strings.Join(cfg.Joiners, ",") != "Des,Jabari,Momz" {
		t.Fatalf("Joiners = %v", cfg.Joiners)
	}
	if cfg.WaitTimeout != 2*time.Second || cfg.SettleDelay != time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.WaitTimeout, cfg.SettleDelay)
	}
	if cfg.Driver != DriverPlaywright || cfg.Headless || cfg.S3Enabled() {
		t.Fatalf("unexpected browser/evidence defaults: %+v", cfg)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("BRINGTEN_HOME_URL", "http://lobby.internal:3000/")
	t.Setenv("BRINGTEN_JOINERS", "A, B")

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	f, err := ParseFlags(set, []string{"--url", "http://127.0.0.1:8080/", "--joiners", "Pain, Konan", "--headless", "--driver", "rod"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	cfg, err := LoadConfig(f)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HomeURL != "http://127.0.0.1:8080/" {
		t.Fatalf("HomeURL = %q", cfg.HomeURL)
	}
	if strings.Join(cfg.Joiners, "|") != "Pain|Konan" {
		t.Fatalf("Joiners = %v", cfg.Joiners)
	}
	if !cfg.Headless || cfg.Driver != DriverRod {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestLoadConfig_ReadsDotEnvWithoutOverriding(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("BRINGTEN_ROOM_NAME", "Akatsuki")

	path := filepath.Join(t.TempDir(), ".env")
	content := "BRINGTEN_HOST_NAME=Itachi\nBRINGTEN_ROOM_NAME=Ignored\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv never overrides a variable that exists, even empty, so drop it
	// entirely; t.Setenv above restores the original value afterwards.
	if err := os.Unsetenv("BRINGTEN_HOST_NAME"); err != nil {
		t.Fatalf("Unsetenv: %v", err)
	}

	cfg, err := LoadConfig(Flags{EnvFile: path})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HostName != "Itachi" {
		t.Fatalf("HostName = %q, want value from .env", cfg.HostName)
	}
	if cfg.RoomName != "Akatsuki" {
		t.Fatalf("RoomName = %q, environment must win over .env", cfg.RoomName)
	}
}

func TestLoadConfig_MissingDotEnvIsFine(t *testing.T) {
	clearRunnerEnv(t)
	if _, err := LoadConfig(Flags{EnvFile: filepath.Join(t.TempDir(), "nope.env")}); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.HomeURL = "localhost:5173"
	cfg.Driver = "selenium"
	cfg.Joiners = []string{"a", "", "c", "d"}
	cfg.Detach = true
	cfg.Headless = true
	cfg.WaitTimeout = 0
	cfg.AWSBucketName = "evidence"

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	msg := err.Error()
	for _, token := range []string{
		"BRINGTEN_HOME_URL",
		"BRINGTEN_DRIVER",
		"at most 3 joiners",
		"entry 2 is empty",
		"--detach",
		"BRINGTEN_WAIT_TIMEOUT",
		"AWS_ENDPOINT_URL_S3",
	} {
		if !strings.Contains(msg, token) {
			t.Errorf("expected validation error mentioning %q, got: %v", token, msg)
		}
	}
}

func TestValidate_RodRejectsChannel(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.Driver = DriverRod
	cfg.Channel = "msedge"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "BRINGTEN_CHANNEL") {
		t.Fatalf("expected channel error for rod, got %v", err)
	}
}

func testValidate_AcceptsUpToThreeNamedJoiners(t *rapid.T) {
	cfg := validTestConfig()
	cfg.Joiners = rapid.SliceOfN(rapid.StringMatching(`[A-Z][a-z]{2,10}`), 0, MaxJoiners).Draw(t, "joiners")
	cfg.HomeURL = rapid.SampledFrom([]string{"http://localhost:5173/", "https://bringten.example/", "http://127.0.0.1:8080"}).Draw(t, "url")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_AcceptsUpToThreeNamedJoiners(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_AcceptsUpToThreeNamedJoiners)
}

func TestHelperParsers_RecordBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	t.Setenv("CFG_TEST_BOOL", "maybe")
	env := &envReader{}
	if got := env.parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := env.parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := env.parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
	if got := env.parseBoolOrDefault("CFG_TEST_BOOL", true); !got {
		t.Fatal("parseBoolOrDefault fallback mismatch")
	}
	if len(env.problems) != 4 {
		t.Fatalf("expected 4 recorded problems, got %v", env.problems)
	}
	if !strings.Contains(env.problems[2], `CFG_TEST_DUR must be a duration such as 2s, got "not-a-duration"`) {
		t.Fatalf("unexpected problem text: %q", env.problems[2])
	}
}

func TestLoadConfig_RejectsMalformedEnv(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("BRINGTEN_WAIT_TIMEOUT", "abc")
	t.Setenv("BRINGTEN_STEP_RATE", "x")
	t.Setenv("BRINGTEN_DRIVER", "selenium")

	_, err := LoadConfig(Flags{})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := []string{"BRINGTEN_WAIT_TIMEOUT", "BRINGTEN_STEP_RATE", "BRINGTEN_DRIVER"}
	if len(validationErr.Errors) != len(want) {
		t.Fatalf("expected %d problems, got %v", len(want), validationErr.Errors)
	}
	for i, key := range want {
		if !strings.HasPrefix(validationErr.Errors[i], key) {
			t.Fatalf("problem %d = %q, want it to name %s", i, validationErr.Errors[i], key)
		}
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "   value   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}

func TestPrintStartupSummary_RedactsAccessKey(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.AWSBucketName = "evidence"
	cfg.AWSEndpointS3 = "https://fly.storage.tigris.dev"
	cfg.AWSAccessKeyID = "tid_supersecret"

	var b strings.Builder
	cfg.PrintStartupSummary(&b)
	out := b.String()
	if strings.Contains(out, "tid_supersecret") {
		t.Fatalf("access key leaked: %s", out)
	}
	if !strings.Contains(out, "s3://evidence") || !strings.Contains(out, "Akil creates \"Game Grumps\"") {
		t.Fatalf("summary missing fields: %s", out)
	}
}

func TestLoadFixtureConfig(t *testing.T) {
	clearRunnerEnv(t)
	cfg, err := LoadFixtureConfig("", "")
	if err != nil || cfg.ListenAddr != ":5173" {
		t.Fatalf("default fixture config = %+v, %v", cfg, err)
	}
	cfg, err = LoadFixtureConfig("", "127.0.0.1:9999")
	if err != nil || cfg.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("addr override = %+v, %v", cfg, err)
	}
	if _, err := LoadFixtureConfig("", "5173"); err == nil {
		t.Fatal("expected error for address without port separator")
	}
}
