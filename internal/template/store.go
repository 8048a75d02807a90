// Package template loads campaign message bodies from a directory of
// HTML files and fills in the custom message slot.
package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// customMessageSlot is substituted literally, no template engine is
// involved. Per-recipient placeholders stay in the output for the
// dispatcher to fill.
const customMessageSlot = "{{custom_message}}"

// builtinTemplate is used when the named template cannot be read, so a
// campaign never fails over a missing file.
const builtinTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <p>Hello {{name}},</p>
  <div>{{custom_message}}</div>
  <p>Best regards,<br>The Clean Earth Renewables Team</p>
  <hr>
  <p style="font-size: 11px; color: #888;">
    You received this email because you expressed interest in community solar.
  </p>
</body>
</html>
`

// Store serves message templates from one directory
type Store struct {
	dir         string
	defaultName string
	logger      *slog.Logger
}

// NewStore creates a template store. defaultName is used when a
// campaign names no template.
func NewStore(dir, defaultName string, logger *slog.Logger) *Store {
	return &Store{dir: dir, defaultName: defaultName, logger: logger}
}

// List returns the available template file names, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".html") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Render loads the named template and substitutes the custom message
// slot. An empty name selects the default template; an unreadable
// template falls back to a built-in body.
func (s *Store) Render(name, customMessage string) string {
	if name == "" {
		name = s.defaultName
	}
	// Strip any path components from client-supplied names.
	name = filepath.Base(name)

	body := builtinTemplate
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		s.logger.Warn("template not readable, using built-in body", "template", name, "error", err)
	} else {
		body = string(data)
	}

	return strings.ReplaceAll(body, customMessageSlot, customMessage)
}
