// Package runner abstracts where build commands execute so the same
// pipeline can drive a local toolchain or one on a remote builder.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes one pipeline command and streams its combined output
// line by line to sink. It returns once the command finished.
type Runner interface {
	Run(ctx context.Context, dir, name string, args []string, sink func(line string)) error
	Describe() string
}

// Output runs the command and captures everything it printed.
func Output(ctx context.Context, r Runner, dir, name string, args []string) (string, error) {
	var buf strings.Builder
	err := r.Run(ctx, dir, name, args, func(line string) {
		buf.WriteString(line)
		buf.WriteByte('\n')
	})
	return buf.String(), err
}

// CommandLine renders an argv for logs and reports.
func CommandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, part := range append([]string{name}, args...) {
		if part == "" || strings.ContainsAny(part, " \t\"") {
			part = strconv.Quote(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// Local runs commands on this machine. Arguments are passed as a real
// argv, nothing is routed through a shell, so paths with spaces survive.
type Local struct{}

func (Local) Describe() string { return "local" }

func (Local) Run(ctx context.Context, dir, name string, args []string, sink func(string)) error {
	if sink == nil {
		sink = func(string) {}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			sink(sc.Text())
		}
	}()

	err := cmd.Run()
	pw.Close()
	<-done

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("command interrupted: %v", ctxErr)
	}
	if err != nil {
		return fmt.Errorf("%s: %v", name, err)
	}
	return nil
}
