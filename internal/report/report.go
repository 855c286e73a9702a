package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Build statuses as they appear in reports and on the API.
const (
	StatusSucceeded     = "Succeeded"
	StatusInstallFailed = "Install Failed"
	StatusBundleFailed  = "Bundle Failed"
	StatusVerifyFailed  = "Verification Failed"
	StatusTimeout       = "Timeout"
	StatusSkipped       = "Skipped"
	StatusDryRun        = "Dry Run"
)

type BuildResult struct {
	Target   string
	Status   string
	Command  string
	Output   string
	Artifact string
	SHA256   string
	Size     int64
	Duration time.Duration
}

type Report struct {
	ProjectFolder        string
	ProjectName          string
	Version              string
	Builder              string
	Toolchain            []string
	Problems             []string
	PinnedRequirements   []string
	FloatingRequirements []string
	BuildResults         []BuildResult
}

// Summary buckets the results. Dry runs and skips count as neither
// success nor failure.
func (r *Report) Summary() (succeeded, failed, skipped int) {
	for _, result := range r.BuildResults {
		switch result.Status {
		case StatusSucceeded:
			succeeded++
		case StatusSkipped, StatusDryRun:
			skipped++
		default:
			failed++
		}
	}
	return succeeded, failed, skipped
}

func (r *Report) Generate() error {
	filename := filepath.Join(r.ProjectFolder, "PBW_build_report.md")
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("[x] Failed to create report file: %v", err)
	}
	defer file.Close()

	reportContent := r.generateReportContent()
	_, err = file.WriteString(reportContent)
	if err != nil {
		return fmt.Errorf("[x] Failed to write report content: %v", err)
	}

	return nil
}

func (r *Report) generateReportContent() string {
	var sb strings.Builder

	sb.WriteString("# PBW Build Report\n\n")
	sb.WriteString(fmt.Sprintf("**Date:** %s\n\n", time.Now().Format(time.RFC1123)))
	project := r.ProjectName
	if r.Version != "" {
		project = fmt.Sprintf("%s %s", r.ProjectName, r.Version)
	}
	sb.WriteString(fmt.Sprintf("**Project:** %s\n\n", project))
	sb.WriteString(fmt.Sprintf("**Builder:** %s\n\n", r.Builder))

	succeeded, failed, skipped := r.Summary()
	sb.WriteString(fmt.Sprintf("**Targets:** %d succeeded, %d failed, %d skipped\n\n", succeeded, failed, skipped))

	sb.WriteString("## Toolchain\n")
	writeList(&sb, r.Toolchain)

	sb.WriteString("\n## Preflight Findings\n")
	writeList(&sb, r.Problems)

	sb.WriteString("\n## Requirements\n")
	sb.WriteString("### Pinned\n")
	writeList(&sb, r.PinnedRequirements)
	sb.WriteString("### Floating\n")
	writeList(&sb, r.FloatingRequirements)

	sb.WriteString("\n## Build Results\n")
	for _, result := range r.BuildResults {
		sb.WriteString(fmt.Sprintf("- **Target:** %s\n", result.Target))
		sb.WriteString(fmt.Sprintf("  - **Status:** %s\n", result.Status))
		if result.Duration > 0 {
			sb.WriteString(fmt.Sprintf("  - **Duration:** %s\n", result.Duration.Round(time.Second)))
		}
		if result.Artifact != "" {
			sb.WriteString(fmt.Sprintf("  - **Artifact:** %s (%s)\n", result.Artifact, FormatSize(result.Size)))
		}
		if result.SHA256 != "" {
			sb.WriteString(fmt.Sprintf("  - **SHA-256:** `%s`\n", result.SHA256))
		}
		if result.Command != "" {
			sb.WriteString(fmt.Sprintf("  - **Command:** `%s`\n", result.Command))
		}
		if result.Output != "" {
			sb.WriteString(fmt.Sprintf("  - **Output:**\n```\n%s\n```\n", result.Output))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeList(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("None\n")
		return
	}
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- %s\n", item))
	}
}

// FormatSize renders a byte count the way humans read artifact sizes.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
