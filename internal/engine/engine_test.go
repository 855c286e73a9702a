package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"PBW/internal/args"
	"PBW/internal/config"
	"PBW/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner scripts the outcome of every command without shelling out.
// onRun, when set, stands in for the side effects of the real command.
type stubRunner struct {
	lines []string
	err   error
	block bool
	onRun func()
	calls [][]string
}

func (s *stubRunner) Describe() string { return "stub" }

func (s *stubRunner) Run(ctx context.Context, dir, name string, cmdArgs []string, sink func(string)) error {
	s.calls = append(s.calls, append([]string{name}, cmdArgs...))
	if s.block {
		<-ctx.Done()
		return fmt.Errorf("command interrupted: %v", ctx.Err())
	}
	if s.onRun != nil {
		s.onRun()
	}
	for _, line := range s.lines {
		if sink != nil {
			sink(line)
		}
	}
	return s.err
}

func parseManifest(t *testing.T, manifest string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(manifest))
	require.NoError(t, err)
	return cfg
}

func minimalManifest(t *testing.T) config.Config {
	return parseManifest(t, `
[project]
name = "demo"
version = "1.2.3"

[bundle]
onefile = true

[[target]]
name = "demo"
entry = "main.py"
`)
}

func newBuilder(t *testing.T, cfg *config.Config, run *stubRunner, projectDir string) *builder {
	t.Helper()
	return &builder{
		cfg:        cfg,
		projectDir: projectDir,
		reportDir:  projectDir,
		python:     "python3",
		run:        run,
		goos:       "linux",
		local:      true,
		report:     &report.Report{ProjectFolder: projectDir},
	}
}

func TestLoadManifestEmbeddedDefault(t *testing.T) {
	cfg, ok := loadManifest(&args.Args{})
	require.True(t, ok)
	assert.Equal(t, "dc_data_migration", cfg.Project.Name)
}

func TestLoadManifestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pbw.toml")
	manifest := `
[project]
name = "demo"

[[target]]
name = "demo"
entry = "main.py"
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	cfg, ok := loadManifest(&args.Args{ConfigFilePath: path})
	require.True(t, ok)
	assert.Equal(t, "demo", cfg.Project.Name)

	_, ok = loadManifest(&args.Args{ConfigFilePath: filepath.Join(t.TempDir(), "absent.toml")})
	assert.False(t, ok)
}

func TestTailKeepsLastLines(t *testing.T) {
	output := newTail(3)
	for i := 1; i <= 5; i++ {
		output.add(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, "line 3\nline 4\nline 5", output.String())

	assert.Empty(t, newTail(3).String())
}

func TestBuildTargetDryRunRecordsCommand(t *testing.T) {
	cfg := minimalManifest(t)
	run := &stubRunner{}
	b := newBuilder(t, &cfg, run, t.TempDir())
	b.dryRun = true

	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	result := b.report.BuildResults[0]
	assert.Equal(t, report.StatusDryRun, result.Status)
	assert.Contains(t, result.Command, "--onefile")
	assert.Contains(t, result.Command, "main.py")
	assert.Empty(t, run.calls, "dry run must not execute anything")
}

func TestBuildTargetRecordsBundleFailure(t *testing.T) {
	cfg := minimalManifest(t)
	run := &stubRunner{
		lines: []string{"building", "Traceback (most recent call last):"},
		err:   fmt.Errorf("python3: exit status 1"),
	}
	b := newBuilder(t, &cfg, run, t.TempDir())

	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	result := b.report.BuildResults[0]
	assert.Equal(t, report.StatusBundleFailed, result.Status)
	assert.Contains(t, result.Output, "Traceback")
}

func TestBuildTargetVerifiesArtifact(t *testing.T) {
	cfg := minimalManifest(t)
	projectDir := t.TempDir()

	run := &stubRunner{}
	b := newBuilder(t, &cfg, run, projectDir)
	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	assert.Equal(t, report.StatusVerifyFailed, b.report.BuildResults[0].Status,
		"bundler exited zero but produced nothing")

	// Same run with the bundler actually delivering binary and spec file.
	distDir := filepath.Join(projectDir, "dist")
	specDir := filepath.Join(projectDir, "spec")
	run.onRun = func() {
		require.NoError(t, os.MkdirAll(distDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(distDir, "demo"), []byte("binary"), 0o755))
		require.NoError(t, os.MkdirAll(specDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(specDir, "demo.spec"), []byte("# spec"), 0o644))
	}

	b.report.BuildResults = nil
	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	result := b.report.BuildResults[0]
	assert.Equal(t, report.StatusSucceeded, result.Status)
	assert.Equal(t, filepath.Join(distDir, "demo"), result.Artifact)

	// A rebuild moves the previous binary aside before the bundler runs.
	b.report.BuildResults = nil
	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	assert.Equal(t, report.StatusSucceeded, b.report.BuildResults[0].Status)
	backups, err := filepath.Glob(filepath.Join(distDir, "demo.*.bak"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestBuildTargetTimesOut(t *testing.T) {
	cfg := parseManifest(t, `
[project]
name = "demo"

[timeouts]
bundle = "50ms"

[[target]]
name = "demo"
entry = "main.py"
`)
	run := &stubRunner{block: true}
	b := newBuilder(t, &cfg, run, t.TempDir())

	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	assert.Equal(t, report.StatusTimeout, b.report.BuildResults[0].Status)
}

func TestBuildTargetRemoteSkipsVerification(t *testing.T) {
	cfg := minimalManifest(t)
	run := &stubRunner{}
	b := newBuilder(t, &cfg, run, "/srv/build/demo")
	b.local = false
	b.reportDir = t.TempDir()

	b.buildTarget(cfg.Targets[0])

	require.Len(t, b.report.BuildResults, 1)
	result := b.report.BuildResults[0]
	assert.Equal(t, report.StatusSucceeded, result.Status)
	assert.Equal(t, filepath.Join("dist", "demo"), result.Artifact)
}

func TestInstallDependenciesFailureMarksAllTargets(t *testing.T) {
	cfg := parseManifest(t, `
[project]
name = "demo"

[[target]]
name = "one"
entry = "one.py"

[[target]]
name = "two"
entry = "two.py"
`)
	run := &stubRunner{
		lines: []string{"ERROR: No matching distribution found for nosuchpkg"},
		err:   fmt.Errorf("python3: exit status 1"),
	}
	buildReport := &report.Report{ProjectFolder: t.TempDir()}

	code, ok := installDependencies(&args.Args{}, run, t.TempDir(), "python3", &cfg, buildReport, buildReport.ProjectFolder)
	assert.False(t, ok)
	assert.Equal(t, ExitBuildFailed, code)

	require.Len(t, buildReport.BuildResults, 2)
	for _, result := range buildReport.BuildResults {
		assert.Equal(t, report.StatusInstallFailed, result.Status)
		assert.Contains(t, result.Output, "No matching distribution")
	}
}

func TestInstallDependenciesSkipFlags(t *testing.T) {
	cfg := minimalManifest(t)
	run := &stubRunner{}

	code, ok := installDependencies(&args.Args{SkipInstall: true}, run, t.TempDir(), "python3", &cfg, &report.Report{}, t.TempDir())
	assert.True(t, ok)
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, run.calls)

	code, ok = installDependencies(&args.Args{DryRun: true}, run, t.TempDir(), "python3", &cfg, &report.Report{}, t.TempDir())
	assert.True(t, ok)
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, run.calls)
}

func TestWriteChecksumsFillsResults(t *testing.T) {
	cfg := minimalManifest(t)
	projectDir := t.TempDir()
	distDir := filepath.Join(projectDir, "dist")
	require.NoError(t, os.MkdirAll(distDir, 0o755))

	artifactPath := filepath.Join(distDir, "demo")
	require.NoError(t, os.WriteFile(artifactPath, []byte("hello"), 0o755))

	buildReport := &report.Report{
		BuildResults: []report.BuildResult{
			{Target: "demo", Status: report.StatusSucceeded, Artifact: artifactPath},
			{Target: "broken", Status: report.StatusBundleFailed},
		},
	}

	writeChecksums(buildReport, projectDir, &cfg)

	result := buildReport.BuildResults[0]
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", result.SHA256)
	assert.Equal(t, int64(5), result.Size)
	assert.Empty(t, buildReport.BuildResults[1].SHA256)

	checksums, err := os.ReadFile(filepath.Join(distDir, "checksums.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(checksums), "demo")
}

func TestPublishArtifactsUploadsBundle(t *testing.T) {
	projectDir := t.TempDir()
	distDir := filepath.Join(projectDir, "dist")
	require.NoError(t, os.MkdirAll(distDir, 0o755))
	artifactPath := filepath.Join(distDir, "demo")
	require.NoError(t, os.WriteFile(artifactPath, []byte("binary"), 0o755))

	var gotProject, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotProject = r.FormValue("project")
		gotVersion = r.FormValue("version")
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"name":"demo-1.2.3.zip","url":"https://registry.example/demo-1.2.3.zip"}`)
	}))
	defer server.Close()

	t.Setenv("PBW_TEST_TOKEN", "sekrit")
	cfg := parseManifest(t, fmt.Sprintf(`
[project]
name = "demo"
version = "1.2.3"

[publish]
url = "%s"
token_env = "PBW_TEST_TOKEN"

[[target]]
name = "demo"
entry = "main.py"
`, server.URL))

	buildReport := &report.Report{
		BuildResults: []report.BuildResult{
			{Target: "demo", Status: report.StatusSucceeded, Artifact: artifactPath},
		},
	}

	require.NoError(t, publishArtifacts(buildReport, projectDir, &cfg))
	assert.Equal(t, "demo", gotProject)
	assert.Equal(t, "1.2.3", gotVersion)
	assert.FileExists(t, filepath.Join(distDir, "demo-1.2.3.zip"))
}

func TestPublishArtifactsNeedsSuccessfulBuilds(t *testing.T) {
	cfg := minimalManifest(t)
	buildReport := &report.Report{
		BuildResults: []report.BuildResult{
			{Target: "demo", Status: report.StatusBundleFailed},
		},
	}
	err := publishArtifacts(buildReport, t.TempDir(), &cfg)
	require.ErrorContains(t, err, "no successful builds")
}

func writeFakePython(t *testing.T, dir string) {
	t.Helper()
	script := `#!/bin/sh
case "$2" in
pip) echo "pip 24.0 from /usr/lib/python3/dist-packages/pip (python 3.11)" ;;
PyInstaller) echo "6.3.0" ;;
*) echo "Python 3.11.4" ;;
esac
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python3"), []byte(script), 0o755))
}

func scaffoldProject(t *testing.T) string {
	t.Helper()
	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "main.py"), []byte("print('hi')\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "requirements.txt"), []byte("rich==13.7.0\n"), 0o644))
	return projectDir
}

func TestRunBuildDryRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	binDir := t.TempDir()
	writeFakePython(t, binDir)
	t.Setenv("PATH", binDir)

	projectDir := scaffoldProject(t)
	manifestPath := filepath.Join(t.TempDir(), "pbw.toml")
	manifest := `
[project]
name = "demo"

[[target]]
name = "demo"
entry = "main.py"
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	code := RunBuild(&args.Args{
		ConfigFilePath: manifestPath,
		ProjectDir:     projectDir,
		Task:           "build",
		NumWorkers:     2,
		DryRun:         true,
	})
	assert.Equal(t, ExitOK, code)

	markdown, err := os.ReadFile(filepath.Join(projectDir, "PBW_build_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(markdown), "Dry Run")
	assert.FileExists(t, filepath.Join(projectDir, "PBW_build_report.html"))
}

func TestRunBuildRejectsBadInvocations(t *testing.T) {
	missingManifest := filepath.Join(t.TempDir(), "absent.toml")

	tests := []struct {
		name       string
		parsedArgs *args.Args
	}{
		{"missing manifest", &args.Args{ConfigFilePath: missingManifest}},
		{"missing project dir", &args.Args{ProjectDir: filepath.Join(t.TempDir(), "nope")}},
		{"absolute dist override", &args.Args{ProjectDir: ".", DistDir: t.TempDir()}},
		{"publish over remote", &args.Args{ProjectDir: ".", Publish: true, RemoteHost: "builder:22"}},
		{"publish without url", &args.Args{ProjectDir: ".", Publish: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ExitUsage, RunBuild(tt.parsedArgs))
		})
	}
}

func TestHandleMaintenanceClean(t *testing.T) {
	projectDir := scaffoldProject(t)
	for _, dir := range []string{"build", "spec", "dist", filepath.Join("src", "__pycache__")} {
		require.NoError(t, os.MkdirAll(filepath.Join(projectDir, dir), 0o755))
	}

	code := HandleMaintenance(&args.Args{ProjectDir: projectDir, Task: "clean"})
	assert.Equal(t, ExitOK, code)

	assert.NoDirExists(t, filepath.Join(projectDir, "build"))
	assert.NoDirExists(t, filepath.Join(projectDir, "dist"))
	assert.NoDirExists(t, filepath.Join(projectDir, "src", "__pycache__"))
	assert.DirExists(t, filepath.Join(projectDir, "src"))
}

func TestHandleMaintenanceRejectsUnknownTask(t *testing.T) {
	code := HandleMaintenance(&args.Args{ProjectDir: ".", Task: "deploy"})
	assert.Equal(t, ExitUsage, code)
}

func TestRunLint(t *testing.T) {
	projectDir := scaffoldProject(t)
	rulesPath := filepath.Join(projectDir, "data_migration_rules.conf")
	rulesFile := "# keep saves\nsaves/\n!saves/backup/\nconfig/${OLD_VERSION_NAME}.txt\n"
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesFile), 0o644))

	cfg := parseManifest(t, `
[project]
name = "demo"

[rules]
file = "data_migration_rules.conf"

[[target]]
name = "demo"
entry = "main.py"
`)
	assert.Equal(t, ExitOK, runLint(projectDir, &cfg))

	noRules := minimalManifest(t)
	assert.Equal(t, ExitUsage, runLint(projectDir, &noRules))
}

func TestRunDoctor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	binDir := t.TempDir()
	writeFakePython(t, binDir)
	t.Setenv("PATH", binDir)

	projectDir := scaffoldProject(t)
	cfg := minimalManifest(t)
	assert.Equal(t, ExitOK, runDoctor(projectDir, &cfg))

	// A project without requirements.txt is not ready to build.
	assert.Equal(t, ExitBuildFailed, runDoctor(t.TempDir(), &cfg))
}

func TestBuildTargetTimeoutRespectsWallClock(t *testing.T) {
	cfg := parseManifest(t, `
[project]
name = "demo"

[timeouts]
bundle = "50ms"

[[target]]
name = "demo"
entry = "main.py"
`)
	run := &stubRunner{block: true}
	b := newBuilder(t, &cfg, run, t.TempDir())

	start := time.Now()
	b.buildTarget(cfg.Targets[0])
	assert.Less(t, time.Since(start), 5*time.Second)
}
