// Package toolchain locates the Python stack a build depends on.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"PBW/internal/runner"
)

// Toolchain is the probed state of the interpreter and the tools the
// pipeline invokes through it. Empty version strings mean the component
// did not answer.
type Toolchain struct {
	Python             string
	PythonVersion      string
	PipVersion         string
	PyInstallerVersion string
}

func pythonCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"py", "python", "python3"}
	}
	return []string{"python3", "python"}
}

// FindPython resolves the interpreter to invoke. An explicit name from
// the manifest wins, otherwise the usual launcher names are tried in
// order.
func FindPython(preferred string) (string, error) {
	if preferred != "" {
		path, err := exec.LookPath(preferred)
		if err != nil {
			return "", fmt.Errorf("configured interpreter %q not found in PATH", preferred)
		}
		return path, nil
	}

	candidates := pythonCandidates()
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no python interpreter found in PATH (tried %s)", strings.Join(candidates, ", "))
}

// Probe asks the interpreter for its own version and for the versions
// of pip and PyInstaller. pip and PyInstaller are always addressed as
// modules of the chosen interpreter so a stray install from another
// Python cannot shadow them.
func Probe(ctx context.Context, python string) Toolchain {
	return ProbeWith(ctx, runner.Local{}, python)
}

// ProbeWith runs the version probes through the given runner, so remote
// builders over SSH report their own toolchain.
func ProbeWith(ctx context.Context, r runner.Runner, python string) Toolchain {
	return Toolchain{
		Python:             python,
		PythonVersion:      probeVersion(ctx, r, python, "--version"),
		PipVersion:         probeVersion(ctx, r, python, "-m", "pip", "--version"),
		PyInstallerVersion: probeVersion(ctx, r, python, "-m", "PyInstaller", "--version"),
	}
}

func probeVersion(ctx context.Context, r runner.Runner, python string, args ...string) string {
	output, err := runner.Output(ctx, r, "", python, args)
	if err != nil {
		return ""
	}
	return firstLine(output)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Missing lists the components that did not respond to the probe.
// PyInstaller often only appears after the install step, callers decide
// how hard to treat that.
func (tc Toolchain) Missing() []string {
	var missing []string
	if tc.PythonVersion == "" {
		missing = append(missing, "python")
	}
	if tc.PipVersion == "" {
		missing = append(missing, "pip")
	}
	if tc.PyInstallerVersion == "" {
		missing = append(missing, "pyinstaller")
	}
	return missing
}

// Complete reports whether the whole stack answered.
func (tc Toolchain) Complete() bool {
	return len(tc.Missing()) == 0
}

// Summary lists the probed components in display order, skipping the ones
// that did not answer. Python and pip versions already name themselves.
func (tc Toolchain) Summary() []string {
	var lines []string
	if tc.PythonVersion != "" {
		lines = append(lines, tc.PythonVersion)
	}
	if tc.PipVersion != "" {
		lines = append(lines, tc.PipVersion)
	}
	if tc.PyInstallerVersion != "" {
		lines = append(lines, "PyInstaller "+tc.PyInstallerVersion)
	}
	return lines
}
