// Package templates provides embedded config file templates for actionstatus init.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.yaml
var templatesFS embed.FS

// Template represents a config file template with metadata.
type Template struct {
	Name        string
	Description string
	Content     []byte
	// StatusFile is set when the template reads items from a status file.
	StatusFile bool
}

// Available templates with their descriptions.
var templateDescriptions = map[string]string{
	"status-file": "Items from a status file, reloaded on change",
	"github":      "Repositories polled with the gh CLI",
	"full":        "Every option, with the update feed",
}

// Default is the template used when none is chosen.
const Default = "status-file"

// List returns all available template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir(".")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	filename := name + ".yaml"
	content, err := templatesFS.ReadFile(filename)
	if err != nil {
		if pathErr, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("template '%s' not found: %w", name, pathErr)
		}
		return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
	}

	return &Template{
		Name:        name,
		Description: templateDescriptions[name],
		Content:     content,
		StatusFile:  strings.Contains(string(content), "\nstatus_file:"),
	}, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom template"
}
