package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSupportsCommentsBOMInlineAndExclude(t *testing.T) {
	content := "\uFEFF# full line comment\n" +
		"   # comment with leading whitespace\n" +
		"\n" +
		"saves/  # copy saves dir\n" +
		"!saves/backup/  # exclude backup\n" +
		"config\\options.txt\n" +
		"!mods/*.jar\n"

	res, err := Parse(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, []Rule{
		{Pattern: "saves/", Exclude: false, Line: 4},
		{Pattern: "saves/backup/", Exclude: true, Line: 5},
		{Pattern: "config/options.txt", Exclude: false, Line: 6},
		{Pattern: "mods/*.jar", Exclude: true, Line: 7},
	}, res.Rules)

	includes, excludes := res.Counts()
	assert.Equal(t, 2, includes)
	assert.Equal(t, 2, excludes)

	// Only the backslash normalization note, nothing at warning level.
	assert.Equal(t, 0, res.Warnings())
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, SeverityInfo, res.Diagnostics[0].Severity)
	assert.Equal(t, 6, res.Diagnostics[0].Line)
}

func TestParseFlagsUnknownPlaceholders(t *testing.T) {
	content := "logs/${OLD_VERION_NAME}.log\n" +
		"logs/${OLD_VERSION_NAME}.log\n" +
		"logs/${NEW_VERSION_NAME}.log\n" +
		"keep/${UNKNOWN_PLACEHOLDER}.txt\n"

	res, err := Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, res.Rules, 4)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, 1, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[0].Message, "${OLD_VERION_NAME}")
	assert.Equal(t, 4, res.Diagnostics[1].Line)
	assert.Contains(t, res.Diagnostics[1].Message, "${UNKNOWN_PLACEHOLDER}")
}

func TestExpandLeavesUnknownNamesInPlace(t *testing.T) {
	ctx := map[string]string{
		"OLD_VERSION_NAME": "1.20.1",
		"NEW_VERSION_NAME": "1.21.4",
	}

	assert.Equal(t, "logs/1.20.1.log", Expand("logs/${OLD_VERSION_NAME}.log", ctx))
	assert.Equal(t, "logs/1.21.4.log", Expand("logs/${NEW_VERSION_NAME}.log", ctx))
	assert.Equal(t, "logs/${OLD_VERION_NAME}.log", Expand("logs/${OLD_VERION_NAME}.log", ctx))
	assert.Equal(t, "keep/${UNKNOWN_PLACEHOLDER}.txt", Expand("keep/${UNKNOWN_PLACEHOLDER}.txt", ctx))
}

func TestParseInlineCommentNeedsLeadingWhitespace(t *testing.T) {
	res, err := Parse(strings.NewReader("resourcepacks/my#pack.zip\n"))
	require.NoError(t, err)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "resourcepacks/my#pack.zip", res.Rules[0].Pattern)
}

func TestParseWarnsOnDuplicatesAndOverrides(t *testing.T) {
	content := "saves/\n" +
		"saves/\n" +
		"!saves/\n"

	res, err := Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, res.Rules, 3)
	require.Len(t, res.Diagnostics, 2)

	assert.Equal(t, 2, res.Diagnostics[0].Line)
	assert.Contains(t, res.Diagnostics[0].Message, "duplicate of line 1")

	assert.Equal(t, 3, res.Diagnostics[1].Line)
	assert.Contains(t, res.Diagnostics[1].Message, "opposite action")
	assert.Contains(t, res.Diagnostics[1].Message, "later rule wins")
}

func TestParseWarnsOnMalformedLines(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"bare exclude marker", "!", "exclude marker without a pattern"},
		{"bare exclude with comment", "! # oops", "exclude marker without a pattern"},
		{"unterminated placeholder", "logs/${OLD_VERSION_NAME.log", "unterminated"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tc.line + "\n"))
			require.NoError(t, err)
			require.GreaterOrEqual(t, res.Warnings(), 1)
			assert.Contains(t, res.Diagnostics[0].Message, tc.want)
		})
	}
}

func TestParseFileMissingFileWarnsInsteadOfFailing(t *testing.T) {
	res, err := ParseFile(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	assert.Empty(t, res.Rules)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, SeverityWarning, res.Diagnostics[0].Severity)
	assert.Contains(t, res.Diagnostics[0].Message, "empty rule set")
}

func TestParseFileReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.conf")
	require.NoError(t, os.WriteFile(path, []byte("saves/\n!mods/\n"), 0644))

	res, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, res.Rules, 2)
	assert.True(t, res.Rules[0].IsDir())
	assert.True(t, res.Rules[1].Exclude)
}

func TestPlaceholdersAreSorted(t *testing.T) {
	assert.Equal(t, []string{
		"NEW_VERSION_NAME",
		"NEW_VERSION_PATH",
		"OLD_VERSION_NAME",
		"OLD_VERSION_PATH",
	}, Placeholders())
}
