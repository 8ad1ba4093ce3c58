package core

import (
	"fmt"
	"path"
	"strings"
)

const RequirementsFile = "requirements.txt"

// RequirementsScan is the closure of a requirements file over its -r and
// -c includes.
type RequirementsScan struct {
	// Files are app relative, in discovery order, root first.
	Files    []string
	Contents map[string][]byte
	Warnings []string
}

// ScanRequirements follows nested includes so that editing an included
// file invalidates the dependency layer. Includes that cannot be hashed
// (remote URLs, paths outside the app, missing files) produce a warning
// instead.
func ScanRequirements(root string, read func(name string) ([]byte, error)) (RequirementsScan, error) {
	scan := RequirementsScan{Contents: map[string][]byte{}}
	content, err := read(root)
	if err != nil {
		return RequirementsScan{}, err
	}
	queue := []string{root}
	scan.Files = append(scan.Files, root)
	scan.Contents[root] = content
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, include := range requirementIncludes(string(scan.Contents[current])) {
			target, warning := resolveInclude(current, include)
			if warning != "" {
				scan.Warnings = append(scan.Warnings, warning)
				continue
			}
			if _, seen := scan.Contents[target]; seen {
				continue
			}
			data, err := read(target)
			if err != nil {
				scan.Warnings = append(scan.Warnings, fmt.Sprintf("%s includes %s, which could not be read (%v); changes to it will not invalidate the dependency cache", current, include, err))
				continue
			}
			scan.Files = append(scan.Files, target)
			scan.Contents[target] = data
			queue = append(queue, target)
		}
	}
	return scan, nil
}

func resolveInclude(from string, include string) (string, string) {
	lower := strings.ToLower(include)
	if strings.Contains(lower, "://") || strings.HasPrefix(lower, "file:") {
		return "", fmt.Sprintf("%s includes the remote file %s; changes to it will not invalidate the dependency cache", from, include)
	}
	if path.IsAbs(include) {
		return "", fmt.Sprintf("%s includes the absolute path %s; changes to it will not invalidate the dependency cache", from, include)
	}
	target := path.Clean(path.Join(path.Dir(from), include))
	if target == ".." || strings.HasPrefix(target, "../") {
		return "", fmt.Sprintf("%s includes %s, which is outside the app directory; changes to it will not invalidate the dependency cache", from, include)
	}
	return target, ""
}

// requirementIncludes returns the targets of -r/--requirement and
// -c/--constraint options.
func requirementIncludes(content string) []string {
	var includes []string
	for _, line := range logicalLines(content) {
		fields := strings.Fields(line)
		for i := 0; i < len(fields); i++ {
			field := fields[i]
			switch {
			case field == "-r" || field == "-c" || field == "--requirement" || field == "--constraint":
				if i+1 < len(fields) {
					includes = append(includes, fields[i+1])
					i++
				}
			case strings.HasPrefix(field, "--requirement="):
				includes = append(includes, strings.TrimPrefix(field, "--requirement="))
			case strings.HasPrefix(field, "--constraint="):
				includes = append(includes, strings.TrimPrefix(field, "--constraint="))
			case i == 0 && (strings.HasPrefix(field, "-r") || strings.HasPrefix(field, "-c")) && len(field) > 2:
				includes = append(includes, field[2:])
			}
		}
	}
	return includes
}

// logicalLines joins backslash continuations and drops comments the way
// pip reads requirement files.
func logicalLines(content string) []string {
	var lines []string
	var pending strings.Builder
	for _, raw := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.HasSuffix(raw, "\\") {
			pending.WriteString(strings.TrimSuffix(raw, "\\"))
			pending.WriteString(" ")
			continue
		}
		pending.WriteString(raw)
		line := stripComment(pending.String())
		pending.Reset()
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if pending.Len() > 0 {
		if line := stripComment(pending.String()); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return ""
	}
	if idx := strings.Index(line, " #"); idx != -1 {
		return line[:idx]
	}
	if idx := strings.Index(line, "\t#"); idx != -1 {
		return line[:idx]
	}
	return line
}
