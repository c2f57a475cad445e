package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/config"
	"github.com/adamancini/actionstatus/internal/types"
)

// statusFile is the on-disk layout of a status file.
type statusFile struct {
	Items []fileItem `yaml:"items" toml:"items" json:"items"`
}

type fileItem struct {
	Name   string `yaml:"name" toml:"name" json:"name"`
	Status string `yaml:"status" toml:"status" json:"status"`
	URL    string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
}

// FileReader reads items from a YAML, TOML or JSON status file.
type FileReader struct {
	Path string
}

// Read implements Reader.
func (r *FileReader) Read(_ context.Context) ([]Item, error) {
	content, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	format := config.DetectFormat(r.Path, content)
	if format == config.FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", r.Path)
	}

	var raw statusFile
	if err := config.Unmarshal(content, format, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", r.Path, err)
	}

	items := make([]Item, 0, len(raw.Items))
	for i, fi := range raw.Items {
		if fi.Name == "" {
			return nil, fmt.Errorf("items[%d]: name is required", i)
		}
		status, err := types.ParseItemStatus(fi.Status)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		items = append(items, Item{Name: fi.Name, Status: status, URL: fi.URL})
	}

	return items, nil
}

// FileProvider is a MemoryProvider kept in sync with a status file.
type FileProvider struct {
	*MemoryProvider
	reader *FileReader
}

// NewFileProvider loads path and returns a provider holding its items.
func NewFileProvider(ctx context.Context, path string) (*FileProvider, error) {
	fp := &FileProvider{
		MemoryProvider: NewMemoryProvider(),
		reader:         &FileReader{Path: path},
	}
	if err := fp.Reload(ctx); err != nil {
		return nil, err
	}
	return fp, nil
}

// Path returns the status file path.
func (fp *FileProvider) Path() string {
	return fp.reader.Path
}

// Reload re-reads the status file. On error the current items are kept.
func (fp *FileProvider) Reload(ctx context.Context) error {
	items, err := fp.reader.Read(ctx)
	if err != nil {
		return err
	}
	fp.Set(items)
	log.Debugf("loaded %d items from %s", len(items), fp.reader.Path)
	return nil
}

// Watch reloads the status file whenever it is written or replaced, until ctx
// is done. onChange, if set, runs after every successful reload. A file that
// fails to parse is logged and skipped so a half-written save does not end
// the watch.
func (fp *FileProvider) Watch(ctx context.Context, onChange func()) error {
	path := filepath.Clean(fp.reader.Path)
	log.Infof("start watching status file: %s", path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// Watch the directory, not the file: editors replace files by renaming over them.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := fp.Reload(ctx); err != nil {
				log.Warnf("failed to reload status file: %v", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
