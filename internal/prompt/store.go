// Package prompt resolves named text templates with bracketed placeholder
// tokens, e.g. "Analyze [Event Title] near [Location]".
package prompt

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrTemplateNotFound marks an unregistered template name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUnresolvedPlaceholder marks a resolved template that still
	// contains a placeholder token.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
)

// placeholderPattern matches an unsubstituted [Token Name] placeholder.
var placeholderPattern = regexp.MustCompile(`\[[A-Za-z][A-Za-z0-9 ]*\]`)

// Store holds named prompt templates. Templates are loaded once and cached
// for the process lifetime; Resolve is a pure function over that set.
type Store struct {
	templates map[string]string
}

// Load reads a templates file. Sections are separated by lines of "---" and
// headed by "### name"; everything after the header is the template body.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	return Parse(string(data))
}

// Parse builds a Store from raw templates file content.
func Parse(content string) (*Store, error) {
	templates := make(map[string]string)

	for _, section := range strings.Split(content, "\n---") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		name, body, ok := splitSection(section)
		if !ok {
			continue
		}
		if _, dup := templates[name]; dup {
			return nil, fmt.Errorf("duplicate template %q", name)
		}
		templates[name] = body
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no templates found")
	}

	return &Store{templates: templates}, nil
}

func splitSection(section string) (name, body string, ok bool) {
	lines := strings.Split(section, "\n")
	var bodyLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if name == "" {
			if strings.HasPrefix(trimmed, "### ") {
				name = strings.TrimSpace(strings.TrimPrefix(trimmed, "### "))
			}
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(strings.Join(bodyLines, "\n")), true
}

// Names returns the registered template names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}

// Resolve substitutes every "[Token]" occurrence for each substitutions key
// "Token" and returns the final text. It fails when the template name is
// unregistered, or when any placeholder survives substitution; a leftover
// token must never reach an external call as literal text.
func (s *Store) Resolve(name string, substitutions map[string]string) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("resolve %q: %w", name, ErrTemplateNotFound)
	}

	resolved := tmpl
	for token, value := range substitutions {
		resolved = strings.ReplaceAll(resolved, "["+token+"]", value)
	}

	if leftover := placeholderPattern.FindString(resolved); leftover != "" {
		return "", fmt.Errorf("resolve %q: %w: %s", name, ErrUnresolvedPlaceholder, leftover)
	}

	return resolved, nil
}
