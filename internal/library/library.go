package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mdevan/promptdex/pkg/types"
)

// ErrItemNotFound is returned when a named item does not exist.
var ErrItemNotFound = errors.New("item not found")

// Root binds a directory to the provenance of items loaded from it.
type Root struct {
	Path   string
	Source types.Source
}

// Library holds the in-memory item collection. Items load from markdown
// files with YAML front matter; when several roots define the same item
// name, the later root wins (builtin < user < local).
type Library struct {
	mu     sync.RWMutex
	items  map[string]*types.Item
	logger *slog.Logger
}

// New creates an empty library.
func New(logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		items:  make(map[string]*types.Item),
		logger: logger,
	}
}

// Load walks each root in order and loads every markdown file found.
// Missing roots are skipped. Files that fail to parse are logged and
// skipped; one bad file never aborts the load.
func (l *Library) Load(roots []Root) error {
	loaded := make(map[string]*types.Item)

	for _, root := range roots {
		if _, err := os.Stat(root.Path); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isMarkdown(path) {
				return nil
			}

			item, err := LoadFile(path, root.Source)
			if err != nil {
				l.logger.Warn("skipping unparseable item file", "path", path, "error", err)
				return nil
			}
			if prev, ok := loaded[item.Name]; ok {
				l.logger.Debug("item overridden",
					"name", item.Name, "was", string(prev.Source), "now", string(item.Source))
			}
			loaded[item.Name] = item
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", root.Path, err)
		}
	}

	l.mu.Lock()
	l.items = loaded
	l.mu.Unlock()

	l.logger.Info("library loaded", "items", len(loaded), "roots", len(roots))
	return nil
}

// Items returns a snapshot of all items sorted by name.
func (l *Library) Items() []*types.Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	items := make([]*types.Item, 0, len(l.items))
	for _, item := range l.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

// Get returns the named item.
func (l *Library) Get(name string) (*types.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	return item, nil
}

// Add inserts or replaces an item.
func (l *Library) Add(item *types.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("cannot add item: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.Name] = item
	return nil
}

// Remove deletes the named item. Removing an absent item is an error so
// callers can distinguish a stale name from a successful delete.
func (l *Library) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.items[name]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	delete(l.items, name)
	return nil
}

// Len returns the number of items.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// frontMatter is the YAML header of an item file.
type frontMatter struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Language    string   `yaml:"language"`
	Tags        []string `yaml:"tags"`
	Arguments   []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Required    bool   `yaml:"required"`
		Default     string `yaml:"default"`
	} `yaml:"arguments"`
}

// placeholderRe matches {{ name }} template placeholders.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// LoadFile parses one markdown item file. The item name defaults to the
// file's base name when the front matter omits it. Placeholders found in the
// body become inferred optional arguments unless the front matter already
// declares them.
func LoadFile(path string, source types.Source) (*types.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	name := fm.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	item := &types.Item{
		Name:        name,
		Title:       fm.Title,
		Description: fm.Description,
		Category:    fm.Category,
		Language:    fm.Language,
		Tags:        fm.Tags,
		Body:        body,
		Source:      source,
		Path:        path,
	}
	for _, a := range fm.Arguments {
		item.Arguments = append(item.Arguments, types.Argument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
			Default:     a.Default,
		})
	}

	inferArguments(item)

	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item in %s: %w", path, err)
	}
	return item, nil
}

// splitFrontMatter separates the YAML header from the markdown body. A file
// without a front matter block is all body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	var fm frontMatter

	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return fm, strings.TrimSpace(content), nil
	}

	head, body, found := strings.Cut(rest, "\n---")
	if !found {
		return fm, "", errors.New("unterminated front matter block")
	}

	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return fm, "", fmt.Errorf("invalid front matter: %w", err)
	}

	body = strings.TrimPrefix(body, "\n")
	return fm, strings.TrimSpace(body), nil
}

// inferArguments appends body placeholders missing from the declared
// argument list, in order of first appearance.
func inferArguments(item *types.Item) {
	for _, m := range placeholderRe.FindAllStringSubmatch(item.Body, -1) {
		name := m[1]
		if !item.HasArgument(name) {
			item.Arguments = append(item.Arguments, types.Argument{Name: name})
		}
	}
}
