package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeConfig(t, map[string]string{"base.yaml": "db:\n  host: localhost\n"})

	cfg, err := Load("local", dir)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	require.Len(t, cfg.Projects, 3)
	assert.Equal(t, "vortex", cfg.Projects[0].ID)
	assert.True(t, cfg.Projects[0].Narrative)
	assert.False(t, cfg.Projects[1].Narrative)
}

func TestLoad_ProjectsAndDurations(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"base.yaml": "session:\n  ttl: 30m\nprojects:\n  - id: apollo\n    narrative: true\n",
	})

	cfg, err := Load("local", dir)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Len(t, cfg.Projects, 1)
	assert.Equal(t, Project{ID: "apollo", Name: "apollo", Narrative: true}, cfg.Projects[0])
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/status")
	t.Setenv("HUGGINGFACE_API_TOKEN", "hf_env")
	dir := writeConfig(t, map[string]string{
		"base.yaml": "db:\n  url: \"${DATABASE_URL}\"\nnarrative:\n  api_token: \"\"\n",
	})

	cfg, err := Load("local", dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/status", cfg.DB.URL)
	assert.Equal(t, "hf_env", cfg.Narrative.APIToken)
}

func TestLoad_RejectsDuplicateProjects(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"base.yaml": "projects:\n  - id: a\n  - id: a\n",
	})

	_, err := Load("local", dir)
	assert.ErrorContains(t, err, "duplicate project id")
}

func TestLoad_RejectsProjectWithoutID(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"base.yaml": "projects:\n  - name: Nameless\n",
	})

	_, err := Load("local", dir)
	assert.Error(t, err)
}

func TestLoad_RepositoryConfigFiles(t *testing.T) {
	cfg, err := Load("local", filepath.Join("..", "..", "config"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Projects)
	assert.Equal(t, "localhost", cfg.DB.Host)
}

func TestLoad_BarePortGetsColon(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	dir := writeConfig(t, map[string]string{"base.yaml": "server:\n  port: \":8080\"\n"})

	cfg, err := Load("local", dir)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}
