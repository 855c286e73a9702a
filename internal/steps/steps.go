// Package steps holds the individual stages of the packaging pipeline.
// The engine decides order and policy, each step only knows how to do
// its one thing through a runner.
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"PBW/internal/config"
	"PBW/internal/icon"
	"PBW/internal/rules"
	"PBW/internal/runner"
)

// DataSeparator returns the src/dest separator PyInstaller expects for
// --add-data on the given GOOS. Windows keeps ';' because ':' shows up
// in drive letters.
func DataSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

func workspaceDirs(cfg *config.Config) []string {
	return []string{cfg.Bundle.SpecDir, cfg.Bundle.WorkDir, cfg.Bundle.DistDir}
}

// EnsureWorkspace creates the directories the bundler writes into.
// Rerunning against an existing workspace is fine and quiet.
func EnsureWorkspace(ctx context.Context, r runner.Runner, projectDir string, cfg *config.Config) error {
	if _, local := r.(runner.Local); local {
		for _, dir := range workspaceDirs(cfg) {
			if err := os.MkdirAll(filepath.Join(projectDir, dir), 0755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		return nil
	}
	args := append([]string{"-p"}, workspaceDirs(cfg)...)
	return r.Run(ctx, projectDir, "mkdir", args, nil)
}

// InstallArgs builds the pip invocation for the requirements file.
func InstallArgs(cfg *config.Config) []string {
	args := []string{"-m", "pip", "install", "-r", cfg.Python.Requirements}
	return append(args, cfg.Python.PipArgs...)
}

// InstallDeps installs the project requirements through the chosen
// interpreter, streaming resolver output to sink.
func InstallDeps(ctx context.Context, r runner.Runner, projectDir, python string, cfg *config.Config, sink func(string)) error {
	return r.Run(ctx, projectDir, python, InstallArgs(cfg), sink)
}

// BundlerArgs assembles the PyInstaller argv for one target. The output
// is deterministic: the same manifest and target always produce the
// same argv, which is what makes builds reproducible and testable.
func BundlerArgs(cfg *config.Config, target config.Target, goos string) []string {
	args := []string{"-m", "PyInstaller"}

	if cfg.EffectiveOneFile(target) {
		args = append(args, "--onefile")
	}
	if cfg.EffectiveWindowed(target) {
		args = append(args, "--noconsole")
	}
	if cfg.Bundle.Clean {
		args = append(args, "--clean")
	}
	if cfg.Bundle.NoConfirm {
		args = append(args, "--noconfirm")
	}

	args = append(args, "--name", target.Name)

	if iconPath := cfg.EffectiveIcon(target); iconPath != "" {
		args = append(args, "--icon", iconPath)
	}

	sep := DataSeparator(goos)
	for _, data := range cfg.EffectiveData(target) {
		args = append(args, "--add-data", data.Src+sep+data.Dest)
	}

	args = append(args,
		"--specpath", cfg.Bundle.SpecDir,
		"--workpath", cfg.Bundle.WorkDir,
		"--distpath", cfg.Bundle.DistDir,
	)

	args = append(args, target.ExtraArgs...)
	return append(args, target.Entry)
}

// RunBundler invokes PyInstaller for the target.
func RunBundler(ctx context.Context, r runner.Runner, projectDir, python string, cfg *config.Config, target config.Target, goos string, sink func(string)) error {
	return r.Run(ctx, projectDir, python, BundlerArgs(cfg, target, goos), sink)
}

// ArtifactPath returns where the bundler leaves the binary, relative to
// the project directory. Onedir targets nest the binary inside a folder
// named after the target.
func ArtifactPath(cfg *config.Config, target config.Target, goos string) string {
	name := target.Name
	if goos == "windows" {
		name += ".exe"
	}
	if cfg.EffectiveOneFile(target) {
		return filepath.Join(cfg.Bundle.DistDir, name)
	}
	return filepath.Join(cfg.Bundle.DistDir, target.Name, name)
}

// SpecFilePath returns where the bundler writes the generated spec
// file, relative to the project directory.
func SpecFilePath(cfg *config.Config, target config.Target) string {
	return filepath.Join(cfg.Bundle.SpecDir, target.Name+".spec")
}

// VerifyArtifact checks that the bundler actually delivered a usable
// binary and returns its absolute path.
func VerifyArtifact(projectDir string, cfg *config.Config, target config.Target, goos string) (string, error) {
	path := filepath.Join(projectDir, ArtifactPath(cfg, target, goos))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("bundler finished but %s was not produced", path)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("artifact %s is a directory", path)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("artifact %s is empty", path)
	}
	specFile := SpecFilePath(cfg, target)
	if _, err := os.Stat(filepath.Join(projectDir, specFile)); err != nil {
		return "", fmt.Errorf("bundler did not write %s", specFile)
	}
	return path, nil
}

// Problem is a preflight finding. Fatal problems stop the build before
// any tool runs.
type Problem struct {
	Fatal   bool
	Message string
}

// Preflight checks every input the pipeline is about to hand to pip and
// PyInstaller: referenced files, the icon container, the rules file.
func Preflight(projectDir string, cfg *config.Config) []Problem {
	var problems []Problem

	missing := make(map[string]bool)
	for _, asset := range cfg.AssetPaths() {
		if _, err := os.Stat(filepath.Join(projectDir, asset)); err != nil {
			missing[asset] = true
			problems = append(problems, Problem{
				Fatal:   true,
				Message: fmt.Sprintf("required file %s is missing", asset),
			})
		}
	}

	checkedIcons := make(map[string]bool)
	for _, target := range cfg.Targets {
		iconPath := cfg.EffectiveIcon(target)
		if iconPath == "" || missing[iconPath] || checkedIcons[iconPath] {
			continue
		}
		checkedIcons[iconPath] = true
		if _, err := icon.InspectFile(filepath.Join(projectDir, iconPath)); err != nil {
			problems = append(problems, Problem{
				Fatal:   true,
				Message: fmt.Sprintf("icon %s is not a valid .ico: %v", iconPath, err),
			})
		}
	}

	if cfg.Rules.File != "" && !missing[cfg.Rules.File] {
		res, err := rules.ParseFile(filepath.Join(projectDir, cfg.Rules.File))
		if err != nil {
			problems = append(problems, Problem{
				Fatal:   true,
				Message: fmt.Sprintf("rules file %s: %v", cfg.Rules.File, err),
			})
		} else {
			for _, d := range res.Diagnostics {
				problems = append(problems, Problem{
					Message: fmt.Sprintf("%s %s", cfg.Rules.File, d),
				})
			}
		}
	}

	return problems
}

// FatalCount returns how many problems block the build.
func FatalCount(problems []Problem) int {
	n := 0
	for _, p := range problems {
		if p.Fatal {
			n++
		}
	}
	return n
}
