package crash

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Report is one captured panic.
type Report struct {
	Timestamp    time.Time
	ErrorMessage string
	StackTrace   string
	Goroutine    string
	Component    string
	Extra        map[string]string
}

// Reporter turns panics into files an operator can attach to a bug
// report instead of a vanished terminal.
type Reporter struct {
	reportsDir string
}

func NewReporter(reportsDir string) *Reporter {
	if reportsDir == "" {
		reportsDir = "crash_reports"
	}

	return &Reporter{
		reportsDir: reportsDir,
	}
}

// RecoverWithCrashReport recovers a panic in the calling goroutine and
// writes a report. Use it with defer at the top of anything long-lived.
func (r *Reporter) RecoverWithCrashReport(component string, extra map[string]string) {
	if err := recover(); err != nil {
		report := &Report{
			Timestamp:    time.Now(),
			ErrorMessage: fmt.Sprintf("%v", err),
			StackTrace:   string(debug.Stack()),
			Component:    component,
			Goroutine:    getGoroutineID(),
			Extra:        extra,
		}

		filePath := r.writeReport(report)

		// Straight to stdout, the logger may be what panicked.
		fmt.Printf("CRASH in %s: %v\nCrash report written to: %s\n",
			component, err, filePath)
	}
}

func getGoroutineID() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])
	lines := strings.Split(stack, "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0])
	}
	return "unknown-goroutine"
}

func (r *Reporter) writeReport(report *Report) string {
	// The folder appears on first crash, a clean run leaves nothing behind.
	if err := os.MkdirAll(r.reportsDir, 0755); err != nil {
		fmt.Printf("Failed to create crash report folder: %v\n", err)
		return ""
	}

	filename := fmt.Sprintf("crash_%s_%s.txt",
		report.Timestamp.Format("20060102_150405"),
		sanitizeFilename(report.Component))

	filePath := filepath.Join(r.reportsDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		fmt.Printf("Failed to create crash report file: %v\n", err)
		return ""
	}
	defer file.Close()

	fmt.Fprintf(file, "Crash Report\n")
	fmt.Fprintf(file, "============\n")
	fmt.Fprintf(file, "Timestamp: %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(file, "Component: %s\n", report.Component)
	fmt.Fprintf(file, "Goroutine: %s\n", report.Goroutine)
	fmt.Fprintf(file, "Runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(file, "Error: %s\n\n", report.ErrorMessage)

	if len(report.Extra) > 0 {
		fmt.Fprintf(file, "Additional Information\n")
		fmt.Fprintf(file, "=====================\n")
		for k, v := range report.Extra {
			fmt.Fprintf(file, "%s: %s\n", k, v)
		}
		fmt.Fprintf(file, "\n")
	}

	fmt.Fprintf(file, "Stack Trace\n")
	fmt.Fprintf(file, "===========\n")
	fmt.Fprintf(file, "%s\n", report.StackTrace)

	return filePath
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
