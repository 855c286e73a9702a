// Package rules lints migration rule files before they are packaged.
//
// The packaged application parses the same grammar at runtime: full-line
// and end-of-line comments, an optional '!' exclude prefix, ${NAME}
// placeholders and backslash normalization. Checking the file at build
// time catches the typos that would otherwise ship inside the bundle.
package rules

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Rule is a single parsed line. Pattern keeps ${NAME} placeholders
// unexpanded since their values only exist at runtime.
type Rule struct {
	Pattern string
	Exclude bool
	Line    int
}

// IsDir reports whether the pattern targets a directory subtree.
func (r Rule) IsDir() bool {
	return strings.HasSuffix(r.Pattern, "/")
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single lint finding. Line is 1-based, 0 for findings
// about the file as a whole.
type Diagnostic struct {
	Line     int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Severity, d.Message)
}

// Result holds the parsed rules together with everything the linter
// flagged along the way.
type Result struct {
	Rules       []Rule
	Diagnostics []Diagnostic
}

// Counts returns how many rules include and how many exclude.
func (r *Result) Counts() (includes, excludes int) {
	for _, rule := range r.Rules {
		if rule.Exclude {
			excludes++
		} else {
			includes++
		}
	}
	return includes, excludes
}

// Warnings returns the number of warning-level diagnostics.
func (r *Result) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

var knownPlaceholders = map[string]struct{}{
	"OLD_VERSION_NAME": {},
	"NEW_VERSION_NAME": {},
	"OLD_VERSION_PATH": {},
	"NEW_VERSION_PATH": {},
}

// Placeholders lists the names the packaged application expands.
func Placeholders() []string {
	names := make([]string, 0, len(knownPlaceholders))
	for name := range knownPlaceholders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownPlaceholders returns the placeholder names in pattern that the
// application will not expand.
func UnknownPlaceholders(pattern string) []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if _, ok := knownPlaceholders[m[1]]; !ok {
			out = append(out, m[1])
		}
	}
	return out
}

// Expand substitutes ${NAME} placeholders using ctx. Unknown names stay
// in place, which is exactly what the packaged application does.
func Expand(pattern string, ctx map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		name := m[2 : len(m)-1]
		if v, ok := ctx[name]; ok {
			return v
		}
		return m
	})
}

// ParseFile lints the rules file at path. A missing file is not an
// error: the application treats it as an empty rule set, so the result
// only carries a warning.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Diagnostics: []Diagnostic{{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("rules file %s does not exist, the application falls back to an empty rule set", path),
			}}}, nil
		}
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse lints rule lines from r. Parsing itself never fails, only
// reading can.
func Parse(r io.Reader) (*Result, error) {
	res := &Result{}
	seen := make(map[string]Rule)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if lineNo == 1 {
			// Tolerate a UTF-8 BOM, editors on Windows like to add one.
			raw = strings.TrimPrefix(raw, "\uFEFF")
		}

		rule, ok, diags := parseLine(raw, lineNo)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if !ok {
			continue
		}

		if prev, dup := seen[rule.Pattern]; dup {
			msg := fmt.Sprintf("duplicate of line %d", prev.Line)
			if prev.Exclude != rule.Exclude {
				msg = fmt.Sprintf("repeats the pattern from line %d with the opposite action, the later rule wins", prev.Line)
			}
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Line:     rule.Line,
				Severity: SeverityWarning,
				Message:  msg,
			})
		}
		seen[rule.Pattern] = rule

		res.Rules = append(res.Rules, rule)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return res, nil
}

func parseLine(raw string, lineNo int) (Rule, bool, []Diagnostic) {
	if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimLeftFunc(raw, unicode.IsSpace), "#") {
		return Rule{}, false, nil
	}

	// An end-of-line comment starts at the first '#' that follows
	// whitespace. A '#' glued to the pattern is part of the pattern.
	line := raw
	var prev rune
	prevStart := -1
	for i, ch := range line {
		if ch == '#' && i > 0 && unicode.IsSpace(prev) {
			line = line[:prevStart]
			break
		}
		prev = ch
		prevStart = i
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return Rule{}, false, nil
	}

	exclude := false
	pattern := line
	if strings.HasPrefix(line, "!") {
		exclude = true
		pattern = line[1:]
	}

	var diags []Diagnostic
	if pattern == "" {
		diags = append(diags, Diagnostic{
			Line:     lineNo,
			Severity: SeverityWarning,
			Message:  "exclude marker without a pattern",
		})
	}

	for _, name := range UnknownPlaceholders(pattern) {
		diags = append(diags, Diagnostic{
			Line:     lineNo,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("unknown placeholder ${%s} is kept as literal text", name),
		})
	}
	if strings.Contains(placeholderRe.ReplaceAllString(pattern, ""), "${") {
		diags = append(diags, Diagnostic{
			Line:     lineNo,
			Severity: SeverityWarning,
			Message:  "unterminated ${ placeholder",
		})
	}

	if strings.Contains(pattern, `\`) {
		diags = append(diags, Diagnostic{
			Line:     lineNo,
			Severity: SeverityInfo,
			Message:  "backslashes are normalized to forward slashes",
		})
		pattern = strings.ReplaceAll(pattern, `\`, "/")
	}

	return Rule{Pattern: pattern, Exclude: exclude, Line: lineNo}, true, diags
}
