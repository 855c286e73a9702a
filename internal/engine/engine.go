package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"PBW/internal/args"
	"PBW/internal/artifact"
	"PBW/internal/cleanup"
	"PBW/internal/config"
	"PBW/internal/crash"
	"PBW/internal/logging"
	"PBW/internal/logshot"
	"PBW/internal/publish"
	"PBW/internal/pydeps"
	"PBW/internal/remote"
	"PBW/internal/render"
	"PBW/internal/report"
	"PBW/internal/rules"
	"PBW/internal/runner"
	"PBW/internal/steps"
	"PBW/internal/toolchain"
	"PBW/internal/workerpool"

	"github.com/fatih/color"
)

// Exit codes, distinct so pipelines can tell operator mistakes from
// build failures.
const (
	ExitOK          = 0
	ExitBuildFailed = 1
	ExitUsage       = 2
)

const probeTimeout = 30 * time.Second

// tailLines is how much command output the report and the failure
// snapshots keep per step.
const tailLines = 40

var shotHighlights = []string{"error", "failed", "fatal", "traceback"}

func init() {
	// Ensure logging package is initialized
	if logging.InfoLogger == nil {
		logging.InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime)
	}
	if logging.WarningLogger == nil {
		logging.WarningLogger = log.New(os.Stdout, "WARNING: ", log.Ldate|log.Ltime)
	}
	if logging.ErrorLogger == nil {
		logging.ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
	}
	if logging.SuccessLogger == nil {
		logging.SuccessLogger = log.New(os.Stdout, "SUCCESS: ", log.Ldate|log.Ltime)
	}
	if logging.ToolLogger == nil {
		logging.ToolLogger = log.New(os.Stdout, "TOOL: ", log.Ldate|log.Ltime)
	}
}

// RunBuild drives the whole pipeline for the build task: manifest, toolchain,
// preflight, pip install, one bundler run per target, checksums, report and
// optionally publish. The returned code is the process exit code.
func RunBuild(parsedArgs *args.Args) int {
	cfg, ok := loadManifest(parsedArgs)
	if !ok {
		return ExitUsage
	}

	if parsedArgs.DistDir != "" {
		if filepath.IsAbs(parsedArgs.DistDir) {
			logging.ErrorLogger.Println("-dist must be relative to the project directory")
			return ExitUsage
		}
		cfg.Bundle.DistDir = parsedArgs.DistDir
	}

	local := parsedArgs.RemoteHost == ""
	if parsedArgs.Publish && !local {
		logging.ErrorLogger.Println("-publish needs local artifacts, run it without -remote")
		return ExitUsage
	}
	if parsedArgs.Publish && cfg.Publish.URL == "" {
		logging.ErrorLogger.Println("-publish requires publish.url in the manifest")
		return ExitUsage
	}

	projectDir := parsedArgs.ProjectDir
	if local {
		abs, err := filepath.Abs(projectDir)
		if err != nil {
			logging.ErrorLogger.Printf("Failed to resolve project directory: %v", err)
			return ExitUsage
		}
		projectDir = abs
		if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
			logging.ErrorLogger.Printf("Project directory %s not found", projectDir)
			return ExitUsage
		}
	}

	var run runner.Runner = runner.Local{}
	goos := runtime.GOOS
	reportDir := projectDir
	if !local {
		executor, err := remote.NewExecutor(
			parsedArgs.RemoteHost,
			parsedArgs.RemoteUser,
			parsedArgs.RemotePass,
			parsedArgs.RemoteKey,
		)
		if err != nil {
			logging.ErrorLogger.Printf("Failed to connect to remote builder: %v", err)
			return ExitUsage
		}
		defer executor.Close()
		run = executor
		// Builders are reached over SSH, a POSIX shell and path layout
		// is assumed on the far side.
		goos = "linux"
		// The project lives on the builder, reports land in the
		// invocation directory instead.
		reportDir = "."
		logging.InfoLogger.Printf("Connected to remote builder %s", executor.Describe())
	}

	python := cfg.Python.Interpreter
	if local {
		found, err := toolchain.FindPython(cfg.Python.Interpreter)
		if err != nil {
			logging.ErrorLogger.Printf("%v", err)
			return ExitUsage
		}
		python = found
	} else if python == "" {
		python = "python3"
	}

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), probeTimeout)
	tc := toolchain.ProbeWith(probeCtx, run, python)
	cancelProbe()
	for _, line := range tc.Summary() {
		logging.InfoLogger.Println(line)
	}
	if tc.PythonVersion == "" {
		logging.ErrorLogger.Printf("%s did not answer --version, not a working interpreter", python)
		return ExitUsage
	}
	if tc.PipVersion == "" && !parsedArgs.SkipInstall {
		logging.ErrorLogger.Printf("pip is not available to %s", python)
		return ExitUsage
	}
	if tc.PyInstallerVersion == "" {
		logging.WarningLogger.Println("PyInstaller not found yet, the install step usually provides it")
	}

	buildReport := &report.Report{
		ProjectFolder: reportDir,
		ProjectName:   cfg.Project.Name,
		Version:       cfg.Project.Version,
		Builder:       run.Describe(),
		Toolchain:     tc.Summary(),
	}

	if local && !parsedArgs.SkipChecks {
		problems := steps.Preflight(projectDir, &cfg)
		for _, problem := range problems {
			buildReport.Problems = append(buildReport.Problems, problem.Message)
			if problem.Fatal {
				logging.ErrorLogger.Printf("Preflight: %s", problem.Message)
			} else {
				logging.WarningLogger.Printf("Preflight: %s", problem.Message)
			}
		}
		if fatal := steps.FatalCount(problems); fatal > 0 {
			logging.ErrorLogger.Printf("%d fatal preflight problem(s), not building", fatal)
			for _, target := range cfg.Targets {
				buildReport.BuildResults = append(buildReport.BuildResults, report.BuildResult{
					Target: target.Name,
					Status: report.StatusSkipped,
					Output: "preflight failed",
				})
			}
			generateAndSaveReport(buildReport)
			return ExitUsage
		}
	}

	if local {
		auditRequirements(buildReport, projectDir, &cfg)
	}

	printTargets(cfg.Targets)

	if !parsedArgs.DryRun {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := steps.EnsureWorkspace(ctx, run, projectDir, &cfg)
		cancel()
		if err != nil {
			logging.ErrorLogger.Printf("Failed to prepare workspace: %v", err)
			return ExitBuildFailed
		}
	}

	if code, ok := installDependencies(parsedArgs, run, projectDir, python, &cfg, buildReport, reportDir); !ok {
		return code
	}

	numWorkers := parsedArgs.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(cfg.Targets) {
		numWorkers = len(cfg.Targets)
	}

	b := &builder{
		cfg:        &cfg,
		projectDir: projectDir,
		reportDir:  reportDir,
		python:     python,
		run:        run,
		goos:       goos,
		local:      local,
		dryRun:     parsedArgs.DryRun,
		report:     buildReport,
		crash:      crash.NewReporter(""),
	}
	workerpool.StartWorkerPool(numWorkers, cfg.Targets, b.buildTargets)

	if local && !parsedArgs.DryRun {
		writeChecksums(buildReport, projectDir, &cfg)
	}

	generateAndSaveReport(buildReport)
	printSummary(buildReport)

	_, failed, _ := buildReport.Summary()
	code := ExitOK
	if failed > 0 {
		code = ExitBuildFailed
	}

	if parsedArgs.Publish && !parsedArgs.DryRun {
		if err := publishArtifacts(buildReport, projectDir, &cfg); err != nil {
			logging.ErrorLogger.Printf("Publish failed: %v", err)
			if code == ExitOK {
				code = ExitBuildFailed
			}
		}
	}

	return code
}

func loadManifest(parsedArgs *args.Args) (config.Config, bool) {
	if parsedArgs.ConfigFilePath == "" {
		cfg := config.LoadEmbeddedConfig()
		logging.InfoLogger.Println("Using embedded manifest")
		return cfg, true
	}
	if _, err := os.Stat(parsedArgs.ConfigFilePath); os.IsNotExist(err) {
		logging.ErrorLogger.Printf("Manifest %s not found", parsedArgs.ConfigFilePath)
		return config.Config{}, false
	}
	cfg, err := config.LoadConfigFromFile(parsedArgs.ConfigFilePath)
	if err != nil {
		logging.ErrorLogger.Printf("%v", err)
		return config.Config{}, false
	}
	logging.InfoLogger.Println("Using provided manifest")
	return cfg, true
}

func auditRequirements(buildReport *report.Report, projectDir string, cfg *config.Config) {
	reqs, _, err := pydeps.ParseFile(filepath.Join(projectDir, cfg.Python.Requirements))
	if err != nil {
		logging.WarningLogger.Printf("Requirements audit skipped: %v", err)
		return
	}

	pinned, floating, direct := pydeps.AuditPinning(reqs)
	buildReport.PinnedRequirements = pinned
	buildReport.FloatingRequirements = append(floating, direct...)
	if len(buildReport.FloatingRequirements) > 0 {
		logging.WarningLogger.Printf("%d requirement(s) not pinned to an exact version", len(buildReport.FloatingRequirements))
	}

	duplicates := pydeps.Duplicates(reqs)
	names := make([]string, 0, len(duplicates))
	for name := range duplicates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logging.WarningLogger.Printf("Requirement %s appears more than once (lines %v)", name, duplicates[name])
	}
}

// installDependencies runs pip once for the whole batch. On failure every
// target is recorded with the same status, none of them was attempted.
func installDependencies(parsedArgs *args.Args, run runner.Runner, projectDir, python string, cfg *config.Config, buildReport *report.Report, reportDir string) (int, bool) {
	if parsedArgs.SkipInstall {
		logging.InfoLogger.Println("Skipping dependency install (-skip-install)")
		return ExitOK, true
	}
	if parsedArgs.DryRun {
		logging.InfoLogger.Printf("[dry-run] %s", runner.CommandLine(python, steps.InstallArgs(cfg)))
		return ExitOK, true
	}

	output := newTail(tailLines)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Install.Duration())
	defer cancel()
	err := steps.InstallDeps(ctx, run, projectDir, python, cfg, func(line string) {
		output.add(line)
		logging.ToolLogger.Printf("[pip] %s", line)
	})
	if err == nil {
		logging.SuccessLogger.Println("Dependencies installed")
		return ExitOK, true
	}

	status := report.StatusInstallFailed
	if ctx.Err() == context.DeadlineExceeded {
		status = report.StatusTimeout
	}
	logging.ErrorLogger.Printf("Dependency install failed: %v", err)
	logshot.Take(reportDir, "pip_install_log.png", output.String(), shotHighlights)
	for _, target := range cfg.Targets {
		buildReport.BuildResults = append(buildReport.BuildResults, report.BuildResult{
			Target: target.Name,
			Status: status,
			Output: output.String(),
		})
	}
	generateAndSaveReport(buildReport)
	return ExitBuildFailed, false
}

// builder carries the per-run state shared by the pool workers. The mutex
// only guards the report, everything else is read-only during the run.
type builder struct {
	cfg        *config.Config
	projectDir string
	reportDir  string
	python     string
	run        runner.Runner
	goos       string
	local      bool
	dryRun     bool
	report     *report.Report
	crash      *crash.Reporter
	mu         sync.Mutex
}

func (b *builder) buildTargets(wg *sync.WaitGroup, jobs <-chan config.Target) {
	defer wg.Done()
	defer b.crash.RecoverWithCrashReport("build_worker", map[string]string{"project": b.cfg.Project.Name})
	for target := range jobs {
		b.buildTarget(target)
	}
}

func (b *builder) buildTarget(target config.Target) {
	start := time.Now()
	result := report.BuildResult{
		Target:  target.Name,
		Command: runner.CommandLine(b.python, steps.BundlerArgs(b.cfg, target, b.goos)),
	}

	if b.dryRun {
		result.Status = report.StatusDryRun
		logging.InfoLogger.Printf("[dry-run] %s", result.Command)
		b.record(result)
		return
	}

	logging.InfoLogger.Printf("Building %s", target.Name)

	if b.local {
		previous := filepath.Join(b.projectDir, steps.ArtifactPath(b.cfg, target, b.goos))
		if backupPath, err := cleanup.BackupArtifact(previous); err != nil {
			logging.WarningLogger.Printf("Could not back up previous artifact: %v", err)
		} else if backupPath != "" {
			logging.InfoLogger.Printf("Previous artifact moved to %s", backupPath)
		}
	}

	output := newTail(tailLines)
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeouts.Bundle.Duration())
	defer cancel()
	err := steps.RunBundler(ctx, b.run, b.projectDir, b.python, b.cfg, target, b.goos, func(line string) {
		output.add(line)
		logging.ToolLogger.Printf("[%s] %s", target.Name, line)
	})
	result.Duration = time.Since(start)
	result.Output = output.String()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.Status = report.StatusTimeout
			logging.ErrorLogger.Printf("Build of %s timed out after %s", target.Name, b.cfg.Timeouts.Bundle.Duration())
		} else {
			result.Status = report.StatusBundleFailed
			logging.ErrorLogger.Printf("Build of %s failed: %v", target.Name, err)
		}
		logshot.Take(b.reportDir, target.Name+"_build_log.png", result.Output, shotHighlights)
		b.record(result)
		return
	}

	if !b.local {
		// The artifact stays on the remote builder, verification and
		// checksums only run for local builds.
		result.Status = report.StatusSucceeded
		result.Artifact = steps.ArtifactPath(b.cfg, target, b.goos)
		logging.SuccessLogger.Printf("Built %s on %s", target.Name, b.run.Describe())
		b.record(result)
		return
	}

	artifactPath, err := steps.VerifyArtifact(b.projectDir, b.cfg, target, b.goos)
	if err != nil {
		result.Status = report.StatusVerifyFailed
		logging.ErrorLogger.Printf("Verification of %s failed: %v", target.Name, err)
		logshot.Take(b.reportDir, target.Name+"_build_log.png", result.Output, shotHighlights)
		b.record(result)
		return
	}

	result.Status = report.StatusSucceeded
	result.Artifact = artifactPath
	logging.SuccessLogger.Printf("Built %s -> %s in %s", target.Name, artifactPath, result.Duration.Round(time.Second))
	b.record(result)
}

func (b *builder) record(result report.BuildResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.BuildResults = append(b.report.BuildResults, result)
}

func writeChecksums(buildReport *report.Report, projectDir string, cfg *config.Config) {
	var paths []string
	for _, result := range buildReport.BuildResults {
		if result.Status == report.StatusSucceeded && result.Artifact != "" {
			paths = append(paths, result.Artifact)
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	distDir := filepath.Join(projectDir, cfg.Bundle.DistDir)
	entries, err := artifact.WriteChecksums(distDir, paths)
	if err != nil {
		logging.ErrorLogger.Printf("Failed to write checksums: %v", err)
		return
	}

	for i := range buildReport.BuildResults {
		result := &buildReport.BuildResults[i]
		for _, entry := range entries {
			if filepath.Join(distDir, filepath.FromSlash(entry.Name)) == result.Artifact {
				result.SHA256 = entry.SHA256
				result.Size = entry.Size
			}
		}
	}
	logging.InfoLogger.Printf("Checksums written to %s", filepath.Join(distDir, artifact.ChecksumsFile))
}

// publishArtifacts zips the dist outputs with their checksum file and pushes
// the archive to the registry from the manifest.
func publishArtifacts(buildReport *report.Report, projectDir string, cfg *config.Config) error {
	var paths []string
	for _, result := range buildReport.BuildResults {
		if result.Status == report.StatusSucceeded && result.Artifact != "" {
			paths = append(paths, result.Artifact)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no successful builds to upload")
	}
	sort.Strings(paths)

	token, err := publish.TokenFromEnv(cfg.Publish.TokenEnv)
	if err != nil {
		return err
	}

	distDir := filepath.Join(projectDir, cfg.Bundle.DistDir)
	checksums := filepath.Join(distDir, artifact.ChecksumsFile)
	if _, err := os.Stat(checksums); err == nil {
		paths = append(paths, checksums)
	}

	zipName := cfg.Project.Name + ".zip"
	if cfg.Project.Version != "" {
		zipName = fmt.Sprintf("%s-%s.zip", cfg.Project.Name, cfg.Project.Version)
	}
	zipPath := filepath.Join(distDir, zipName)
	if err := cleanup.Archive(zipPath, distDir, paths); err != nil {
		return err
	}

	sum, err := artifact.Checksum(zipPath)
	if err != nil {
		return err
	}

	project := cfg.Publish.Project
	if project == "" {
		project = cfg.Project.Name
	}

	client := publish.NewClient(cfg.Publish.URL, token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	uploaded, err := client.UploadArtifact(ctx, project, cfg.Project.Version, zipPath, sum)
	if err != nil {
		return err
	}
	if uploaded.URL != "" {
		logging.SuccessLogger.Printf("Uploaded %s to %s", uploaded.Name, uploaded.URL)
	} else {
		logging.SuccessLogger.Printf("Uploaded %s", uploaded.Name)
	}
	return nil
}

func generateAndSaveReport(buildReport *report.Report) {
	if err := buildReport.Generate(); err != nil {
		logging.ErrorLogger.Printf("Failed to generate report: %v", err)
		return
	}

	renderedContent, err := render.Generate(buildReport)
	if err != nil {
		logging.ErrorLogger.Printf("Failed to render report: %v", err)
		return
	}

	reportFilePath := filepath.Join(buildReport.ProjectFolder, "PBW_build_report.html")
	if err := os.WriteFile(reportFilePath, []byte(renderedContent), 0644); err != nil {
		logging.ErrorLogger.Printf("Failed to write rendered report: %v", err)
		return
	}

	logging.InfoLogger.Printf("Report generated at %s", reportFilePath)
}

// HandleMaintenance dispatches the non-build tasks. These run locally, a
// remote builder keeps its own workspace.
func HandleMaintenance(parsedArgs *args.Args) int {
	cfg, ok := loadManifest(parsedArgs)
	if !ok {
		return ExitUsage
	}

	projectDir, err := filepath.Abs(parsedArgs.ProjectDir)
	if err != nil {
		logging.ErrorLogger.Printf("Failed to resolve project directory: %v", err)
		return ExitUsage
	}

	switch parsedArgs.Task {
	case "clean":
		return runClean(projectDir, &cfg)
	case "doctor":
		return runDoctor(projectDir, &cfg)
	case "lint":
		return runLint(projectDir, &cfg)
	default:
		logging.ErrorLogger.Printf("Invalid task: %s", parsedArgs.Task)
		return ExitUsage
	}
}

func runClean(projectDir string, cfg *config.Config) int {
	removed := cleanup.RemoveWorkspace(projectDir, cfg, false)
	pycaches := cleanup.RemovePycache(projectDir)
	logging.SuccessLogger.Printf("Cleaned %d workspace directories and %d __pycache__ trees", len(removed), pycaches)
	return ExitOK
}

func runDoctor(projectDir string, cfg *config.Config) int {
	header := color.New(color.FgHiGreen, color.Bold).SprintfFunc()
	good := color.New(color.FgHiGreen).SprintfFunc()
	bad := color.New(color.FgHiRed).SprintfFunc()
	warn := color.New(color.FgHiYellow).SprintfFunc()
	divider := strings.Repeat("=", 50)

	fmt.Println(divider)
	fmt.Println(header("Toolchain Check"))
	fmt.Println(divider)

	healthy := true

	python, err := toolchain.FindPython(cfg.Python.Interpreter)
	if err != nil {
		fmt.Printf("%s %v\n", bad("[!!]"), err)
		fmt.Println(divider)
		return ExitBuildFailed
	}
	fmt.Printf("%s interpreter: %s\n", good("[ok]"), python)

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	tc := toolchain.Probe(ctx, python)
	cancel()

	for _, line := range tc.Summary() {
		fmt.Printf("%s %s\n", good("[ok]"), line)
	}
	for _, name := range tc.Missing() {
		fmt.Printf("%s %s not found\n", bad("[!!]"), name)
		healthy = false
	}

	reqs, _, err := pydeps.ParseFile(filepath.Join(projectDir, cfg.Python.Requirements))
	if err != nil {
		fmt.Printf("%s %s: %v\n", bad("[!!]"), cfg.Python.Requirements, err)
		healthy = false
	} else {
		pinned, floating, direct := pydeps.AuditPinning(reqs)
		fmt.Printf("%s %s: %d pinned, %d floating, %d direct\n",
			good("[ok]"), cfg.Python.Requirements, len(pinned), len(floating), len(direct))
	}

	problems := steps.Preflight(projectDir, cfg)
	for _, problem := range problems {
		if problem.Fatal {
			fmt.Printf("%s %s\n", bad("[!!]"), problem.Message)
			healthy = false
		} else {
			fmt.Printf("%s %s\n", warn("[--]"), problem.Message)
		}
	}
	if len(problems) == 0 {
		fmt.Printf("%s manifest assets all present\n", good("[ok]"))
	}

	fmt.Println(divider)

	if !healthy {
		return ExitBuildFailed
	}
	return ExitOK
}

func runLint(projectDir string, cfg *config.Config) int {
	if cfg.Rules.File == "" {
		logging.ErrorLogger.Println("No rules file configured in the manifest")
		return ExitUsage
	}

	result, err := rules.ParseFile(filepath.Join(projectDir, cfg.Rules.File))
	if err != nil {
		logging.ErrorLogger.Printf("Failed to read %s: %v", cfg.Rules.File, err)
		return ExitBuildFailed
	}

	header := color.New(color.FgHiGreen, color.Bold).SprintfFunc()
	item := color.New(color.FgHiBlue).SprintfFunc()
	warn := color.New(color.FgHiYellow).SprintfFunc()
	divider := strings.Repeat("=", 50)

	fmt.Println(divider)
	fmt.Println(header("Migration Rules: %s", cfg.Rules.File))
	fmt.Println(divider)

	if len(result.Rules) == 0 {
		fmt.Println("No rules found.")
	}
	for i, rule := range result.Rules {
		action := "copy"
		if rule.Exclude {
			action = "skip"
		}
		kind := "file"
		if rule.IsDir() {
			kind = "dir"
		}
		fmt.Printf("%s %-4s %-4s %s\n", item("[%d]", i+1), action, kind, rule.Pattern)
	}

	fmt.Println(divider)

	for _, diagnostic := range result.Diagnostics {
		fmt.Printf("%s %s\n", warn("[warn]"), diagnostic)
	}

	printExpansionPreview(header, divider, result.Rules)

	includes, excludes := result.Counts()
	fmt.Printf("%d include rule(s), %d exclude rule(s), %d warning(s)\n", includes, excludes, result.Warnings())

	return ExitOK
}

// printExpansionPreview shows what placeholder patterns resolve to for a
// sample version pair, the same substitution the packaged tool performs.
func printExpansionPreview(header func(format string, a ...interface{}) string, divider string, ruleSet []rules.Rule) {
	sample := map[string]string{
		"OLD_VERSION_NAME": "1.20.1",
		"NEW_VERSION_NAME": "1.21.4",
		"OLD_VERSION_PATH": "instances/1.20.1",
		"NEW_VERSION_PATH": "instances/1.21.4",
	}

	previewed := false
	for _, rule := range ruleSet {
		expanded := rules.Expand(rule.Pattern, sample)
		if expanded == rule.Pattern {
			continue
		}
		if !previewed {
			fmt.Println(header("Placeholder Preview (1.20.1 -> 1.21.4)"))
			previewed = true
		}
		fmt.Printf("  %s -> %s\n", rule.Pattern, expanded)
	}
	if previewed {
		fmt.Println(divider)
	}
}

func printTargets(targets []config.Target) {
	if len(targets) == 0 {
		fmt.Println("No build targets configured.")
		return
	}

	header := color.New(color.FgHiGreen, color.Bold).SprintfFunc()
	targetItem := color.New(color.FgHiBlue).SprintfFunc()
	divider := strings.Repeat("=", 50)

	fmt.Println(divider)
	fmt.Println(header("Build Targets"))
	fmt.Println(divider)

	for i, target := range targets {
		fmt.Printf("%s %s (%s)\n", targetItem("[%d]", i+1), target.Name, target.Entry)
	}

	fmt.Println(divider)
}

func printSummary(buildReport *report.Report) {
	succeeded, failed, skipped := buildReport.Summary()

	good := color.New(color.FgHiGreen).SprintfFunc()
	bad := color.New(color.FgHiRed).SprintfFunc()
	neutral := color.New(color.FgHiBlack).SprintfFunc()
	divider := strings.Repeat("=", 50)

	fmt.Println(divider)
	for _, result := range buildReport.BuildResults {
		mark := good("[ok]")
		switch result.Status {
		case report.StatusSucceeded:
		case report.StatusSkipped, report.StatusDryRun:
			mark = neutral("[--]")
		default:
			mark = bad("[!!]")
		}
		fmt.Printf("%s %s: %s\n", mark, result.Target, result.Status)
	}
	fmt.Println(divider)
	fmt.Printf("%d succeeded, %d failed, %d skipped\n", succeeded, failed, skipped)
}

// tail keeps the last max lines of streamed command output. Full bundler
// logs run to thousands of lines, the report only wants the end.
type tail struct {
	lines []string
	max   int
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
