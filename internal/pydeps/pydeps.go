// Package pydeps parses pip requirements files and audits them for
// repeatable builds.
package pydeps

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Requirement is one dependency line from a requirements file.
type Requirement struct {
	Name       string
	Extras     []string
	Constraint string // version specifier, e.g. "==6.6.1", empty when absent
	Marker     string // environment marker after ';'
	URL        string // set for direct references
	Direct     bool
	Line       int
	Raw        string
}

// Pinned reports whether the requirement resolves to exactly one version.
func (r Requirement) Pinned() bool {
	return strings.HasPrefix(r.Constraint, "==")
}

// Directive is an option line such as "-r base.txt" or "--index-url".
type Directive struct {
	Line int
	Raw  string
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// Normalize maps a distribution name to its canonical form so that
// "PyQt6-Qt6" and "pyqt6_qt6" compare equal.
func Normalize(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(name), "-")
}

func ParseFile(filePath string) ([]Requirement, []Directive, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return Parse(file)
}

func Parse(r io.Reader) ([]Requirement, []Directive, error) {
	var reqs []Requirement
	var directives []Directive

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			directives = append(directives, Directive{Line: lineNo, Raw: line})
			continue
		}

		req, err := parseRequirement(line, lineNo)
		if err != nil {
			return nil, nil, err
		}
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return reqs, directives, nil
}

// stripComment removes a trailing comment. Like pip, a '#' only starts
// a comment at the beginning of the line or after whitespace.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			return line[:i]
		}
	}
	return line
}

var specifierOps = []string{"===", "==", ">=", "<=", "~=", "!=", ">", "<"}

func parseRequirement(line string, lineNo int) (Requirement, error) {
	req := Requirement{Line: lineNo, Raw: line}

	spec := line
	if i := strings.IndexByte(spec, ';'); i >= 0 {
		req.Marker = strings.TrimSpace(spec[i+1:])
		spec = strings.TrimSpace(spec[:i])
	}

	// "name @ url" is a direct reference, anything that is a URL or a
	// path on its own is one too.
	if i := strings.IndexByte(spec, '@'); i >= 0 && !strings.Contains(spec[:i], "/") {
		req.Direct = true
		req.URL = strings.TrimSpace(spec[i+1:])
		spec = strings.TrimSpace(spec[:i])
	} else if strings.HasPrefix(spec, "git+") || strings.Contains(spec, "://") ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		req.Direct = true
		req.URL = spec
		req.Name = eggName(spec)
		return req, nil
	}

	if !req.Direct {
		for _, op := range specifierOps {
			if i := strings.Index(spec, op); i >= 0 {
				req.Constraint = strings.TrimSpace(spec[i:])
				spec = strings.TrimSpace(spec[:i])
				break
			}
		}
	}

	if i := strings.IndexByte(spec, '['); i >= 0 {
		end := strings.IndexByte(spec, ']')
		if end < i {
			return req, fmt.Errorf("requirement on line %d: unclosed extras bracket", lineNo)
		}
		for _, extra := range strings.Split(spec[i+1:end], ",") {
			if extra = strings.TrimSpace(extra); extra != "" {
				req.Extras = append(req.Extras, extra)
			}
		}
		spec = strings.TrimSpace(spec[:i])
	}

	if !namePattern.MatchString(spec) {
		return req, fmt.Errorf("requirement on line %d: invalid name %q", lineNo, spec)
	}
	req.Name = spec
	return req, nil
}

// eggName pulls the distribution name out of a VCS URL fragment.
func eggName(url string) string {
	if i := strings.Index(url, "#egg="); i >= 0 {
		name := url[i+len("#egg="):]
		if j := strings.IndexAny(name, "&["); j >= 0 {
			name = name[:j]
		}
		return name
	}
	return ""
}

// AuditPinning buckets requirements by how reproducible they are. Names
// come back sorted so callers can print them as-is.
func AuditPinning(reqs []Requirement) (pinned, floating, direct []string) {
	for _, req := range reqs {
		switch {
		case req.Direct:
			direct = append(direct, req.Raw)
		case req.Pinned():
			pinned = append(pinned, req.Name+req.Constraint)
		default:
			floating = append(floating, req.Raw)
		}
	}
	sort.Strings(pinned)
	sort.Strings(floating)
	sort.Strings(direct)
	return pinned, floating, direct
}

// Duplicates returns canonical names that appear more than once, mapped
// to the lines they occur on.
func Duplicates(reqs []Requirement) map[string][]int {
	lines := make(map[string][]int)
	for _, req := range reqs {
		if req.Name == "" {
			continue
		}
		key := Normalize(req.Name)
		lines[key] = append(lines[key], req.Line)
	}
	for key, occurrences := range lines {
		if len(occurrences) < 2 {
			delete(lines, key)
		}
	}
	return lines
}
