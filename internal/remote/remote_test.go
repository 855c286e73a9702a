package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandLineQuotesForTheRemoteShell(t *testing.T) {
	command := buildCommandLine("/srv/build/my app", "python3",
		[]string{"-m", "PyInstaller", "--name", "dc_data_migration", "--add-data", "assets/icon.ico:assets"})

	assert.Equal(t,
		"cd '/srv/build/my app' && python3 -m PyInstaller --name dc_data_migration --add-data assets/icon.ico:assets",
		command)
}

func TestBuildCommandLineWithoutDir(t *testing.T) {
	command := buildCommandLine("", "python3", []string{"--version"})
	assert.Equal(t, "python3 --version", command)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "plain", shellQuote("plain"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "'with space'", shellQuote("with space"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, `'a;b'`, shellQuote("a;b"))
}

func TestNewExecutorRequiresAuth(t *testing.T) {
	_, err := NewExecutor("builder.example.com", "ci", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authentication methods")
}

func TestNewExecutorRejectsUnreadableKey(t *testing.T) {
	_, err := NewExecutor("builder.example.com", "ci", "", "/does/not/exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read private key")
}
