package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PBW/internal/config"
)

func init() {
	log.SetOutput(io.Discard)
}

func writeProjectFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDetectEntryScript(t *testing.T) {
	t.Run("prefers main.py", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "main.py", "print('hi')\n")
		writeProjectFile(t, dir, "helper.py", "")

		entry, err := detectEntryScript(dir)
		require.NoError(t, err)
		assert.Equal(t, "main.py", entry)
	})

	t.Run("accepts a single script", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "migrate.py", "")
		writeProjectFile(t, dir, "setup.py", "")

		entry, err := detectEntryScript(dir)
		require.NoError(t, err)
		assert.Equal(t, "migrate.py", entry)
	})

	t.Run("refuses to guess between scripts", func(t *testing.T) {
		dir := t.TempDir()
		writeProjectFile(t, dir, "alpha.py", "")
		writeProjectFile(t, dir, "beta.py", "")

		_, err := detectEntryScript(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alpha.py, beta.py")
	})

	t.Run("reports an empty project", func(t *testing.T) {
		_, err := detectEntryScript(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no python script")
	})
}

func TestScanProjectDetectsLayout(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "main.py", "print('hi')\n")
	writeProjectFile(t, dir, "requirements.txt", "rich==13.7.0\n")
	writeProjectFile(t, dir, filepath.Join("assets", "icon.ico"), "ico")
	writeProjectFile(t, dir, "app.conf", "")
	writeProjectFile(t, dir, "data_migration_rules.conf", "")

	scan, err := scanProject(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir), scan.name)
	assert.Equal(t, "main.py", scan.entry)
	assert.Equal(t, "requirements.txt", scan.requirements)
	assert.Equal(t, "assets/icon.ico", scan.icon)
	assert.Equal(t, []string{"app.conf", "data_migration_rules.conf"}, scan.dataFiles)
	assert.Equal(t, "data_migration_rules.conf", scan.rulesFile)
}

func TestFindIcon(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, findIcon(dir))

	writeProjectFile(t, dir, filepath.Join("assets", "icon.ico"), "ico")
	assert.Equal(t, "assets/icon.ico", findIcon(dir))

	writeProjectFile(t, dir, "favicon.ico", "ico")
	assert.Equal(t, "favicon.ico", findIcon(dir))
}

func TestRunWritesManifestTheBuilderCanRead(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "main.py", "print('hi')\n")
	writeProjectFile(t, dir, "requirements.txt", "rich==13.7.0\n")
	writeProjectFile(t, dir, filepath.Join("assets", "icon.ico"), "ico")
	writeProjectFile(t, dir, "data_migration_rules.conf", "")

	genConfig := &GenConfig{projectDir: dir}
	genConfig.Run()

	data, err := os.ReadFile(filepath.Join(dir, "pbw.toml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Starter manifest"))
	assert.NoFileExists(t, filepath.Join(dir, "pbw.toml.new"))

	cfg, err := config.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir), cfg.Project.Name)
	assert.Equal(t, "0.1.0", cfg.Project.Version)
	assert.Equal(t, "requirements.txt", cfg.Python.Requirements)
	assert.Equal(t, "assets/icon.ico", cfg.Bundle.Icon)
	assert.Equal(t, "data_migration_rules.conf", cfg.Rules.File)
	assert.Equal(t, 15*time.Minute, cfg.Timeouts.Install.Duration())

	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "main.py", cfg.Targets[0].Entry)
	assert.True(t, cfg.EffectiveOneFile(cfg.Targets[0]))

	// The rules file ships alongside the binary and the icon stays
	// reachable under assets/.
	require.Len(t, cfg.Bundle.Data, 2)
	assert.Equal(t, "data_migration_rules.conf", cfg.Bundle.Data[0].Src)
	assert.Equal(t, "assets/icon.ico", cfg.Bundle.Data[1].Src)
	assert.Equal(t, "assets", cfg.Bundle.Data[1].Dest)
}

func TestRunRegenReplacesManifest(t *testing.T) {
	dir := t.TempDir()
	writeProjectFile(t, dir, "main.py", "print('hi')\n")
	writeProjectFile(t, dir, "pbw.toml", "# stale manifest\n")

	genConfig := &GenConfig{regen: true, projectDir: dir}
	genConfig.Run()

	data, err := os.ReadFile(filepath.Join(dir, "pbw.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), "[project]")
}

func TestBuildManifestSkipsEmptySections(t *testing.T) {
	dir := t.TempDir()
	genConfig := &GenConfig{projectDir: dir}

	built := genConfig.buildManifest(projectScan{name: "demo", entry: "main.py"})
	require.Nil(t, built.Rules)

	outputFile := filepath.Join(dir, "pbw.toml.new")
	genConfig.saveManifest(built, outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "[rules]")
	assert.NotContains(t, string(data), "[publish]")
	assert.NotContains(t, string(data), "icon")
}
