package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/service"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`database:
  driver: sqlite
  sqlite_path: %q
vector:
  path: %q
  dimensions: 128
ai:
  provider: ""
%s`, filepath.Join(dir, "ideas.db"), filepath.Join(dir, "vector_db"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAddListSearchDelete(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, "add", "--json", "-t", "Shopping", "buy", "oat", "milk", "milk")
	require.NoError(t, err)
	var created service.CreateIdeaResult
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, uint(1), created.Idea.ID)
	assert.Contains(t, created.Idea.Tags, "shopping")
	assert.Contains(t, created.Idea.Tags, "milk")

	out, err = execute(t, cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "buy oat milk milk")

	out, err = execute(t, cfg, "search", "--json", "OAT")
	require.NoError(t, err)
	var ideas []model.IdeaDTO
	require.NoError(t, json.Unmarshal([]byte(out), &ideas))
	assert.Len(t, ideas, 1)

	out, err = execute(t, cfg, "search", "--json", "--tags", "shopping,milk")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &ideas))
	assert.Len(t, ideas, 1)

	out, err = execute(t, cfg, "update", "1", "--tags", "groceries")
	require.NoError(t, err)
	assert.Contains(t, out, "groceries")

	_, err = execute(t, cfg, "update", "1")
	require.Error(t, err)

	out, err = execute(t, cfg, "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted idea #1")

	_, err = execute(t, cfg, "show", "1")
	require.Error(t, err)
	_, err = execute(t, cfg, "show", "abc")
	require.Error(t, err)
}

func TestRemindCommands(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, cfg, "add", "renew passport")
	require.NoError(t, err)

	out, err := execute(t, cfg, "remind", "add", "--due", "2020-01-02", "1", "renew", "it")
	require.NoError(t, err)
	assert.Contains(t, out, "Reminder #1")

	out, err = execute(t, cfg, "remind", "pending", "--json")
	require.NoError(t, err)
	var pending []model.Reminder
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "renew it", pending[0].Message)

	_, err = execute(t, cfg, "remind", "done", "1")
	require.NoError(t, err)

	out, err = execute(t, cfg, "remind", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No reminders.")

	_, err = execute(t, cfg, "remind", "add", "--due", "someday", "1", "x")
	require.Error(t, err)

	_, err = execute(t, cfg, "remind", "suggest", "1")
	require.Error(t, err)
}

func TestSettingsAndToken(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, cfg, "settings", "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "anthropic")

	_, err = execute(t, cfg, "settings", "set", "--provider", "nope")
	require.Error(t, err)

	out, err = execute(t, cfg, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "AI configured:   false")

	_, err = execute(t, cfg, "token")
	require.Error(t, err)

	withSecret := writeConfig(t, "jwt:\n  secret: \"s3cret\"\n")
	out, err = execute(t, withSecret, "token", "--json")
	require.NoError(t, err)
	var tok map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &tok))
	assert.NotEmpty(t, tok["token"])
}

func TestParseDue(t *testing.T) {
	now := mustTime(t, "2026-10-17T12:00:00Z")

	got, err := parseDue("", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 7), got)

	got, err = parseDue("2026-11-01T08:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, mustTime(t, "2026-11-01T08:00:00Z"), got)

	got, err = parseDue("2026-11-01", now)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	_, err = parseDue("tomorrow", now)
	require.Error(t, err)
}
