package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AndreyBychenkow/LessonReportBot/internal/config"
	"github.com/AndreyBychenkow/LessonReportBot/internal/testenv"
)

// runCLI executes the root command with args and returns stdout, stderr
// and the exit code.
func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	code := execute(root)
	return stdout.String(), stderr.String(), code
}

// clearEnv unsets key for the duration of the test.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvAPIToken, config.EnvAPIURL, config.EnvBotToken,
		config.EnvChatID, config.EnvRequestTimeout,
	} {
		clearEnv(t, key)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigLayering(t *testing.T) {
	dir := testenv.SetDataDir(t)
	clearConfigEnv(t)

	cfgFile := filepath.Join(dir, "config.toml")
	writeFile(t, cfgFile, `
api_token = "from-file"
chat_id = "111"
cooldown_seconds = 30
`)
	dotenv := filepath.Join(dir, ".env")
	writeFile(t, dotenv, "TG_CHAT_ID=222\nTG_BOT_API=bot-from-dotenv\n")
	t.Setenv(config.EnvAPIToken, "from-env")

	configPath, envFile = cfgFile, dotenv
	t.Cleanup(func() { configPath, envFile = "", ".env" })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIToken != "from-env" {
		t.Errorf("expected environment to win over file, got %q", cfg.APIToken)
	}
	if cfg.ChatID != "222" {
		t.Errorf("expected dotenv chat id 222, got %q", cfg.ChatID)
	}
	if cfg.BotToken != "bot-from-dotenv" {
		t.Errorf("expected bot token from dotenv, got %q", cfg.BotToken)
	}
	if cfg.CooldownSeconds != 30 {
		t.Errorf("expected cooldown 30 from file, got %d", cfg.CooldownSeconds)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := testenv.SetDataDir(t)
	clearConfigEnv(t)

	cfgFile := filepath.Join(dir, "config.toml")
	writeFile(t, cfgFile, "api_token = [unterminated")

	configPath, envFile = cfgFile, ""
	t.Cleanup(func() { configPath, envFile = "", ".env" })

	_, err := loadConfig()
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("expected load config error, got %v", err)
	}
}

func TestResolveConfigPathDefault(t *testing.T) {
	dir := testenv.SetDataDir(t)
	configPath = ""

	if got, want := resolveConfigPath(), filepath.Join(dir, "config.toml"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
