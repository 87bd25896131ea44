package security

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultBlockCategories are the built-in sensitive-content patterns for
// the campus setting. Deployments normally override these via a YAML file.
var DefaultBlockCategories = map[string][]string{
	"academic_fraud": {
		`(?i)\btake\s+(the|my|an)\s+exam\s+for\b`,
		`(?i)\bexam\s+(proxy|surrogate)\b`,
		`(?i)\bghostwrit(e|er|ing)\b`,
	},
	"forged_documents": {
		`(?i)\bfake\s+(id|diploma|certificate|transcript)\b`,
		`(?i)\bforged?\s+(id|diploma|certificate|transcript)\b`,
	},
	"abuse": {
		`(?i)\b(insult|harass|threaten)\s+(a\s+)?(teacher|staff|student)s?\b`,
	},
}

// Blocklist pattern-matches messages against categorized regexes. Any match
// is a straightforward rejection naming the category; there is no masking.
type Blocklist struct {
	mu         sync.RWMutex
	categories map[string][]*regexp.Regexp
	path       string
}

// NewBlocklist compiles the configured categories, loading from the YAML
// file if one is given.
func NewBlocklist(cfg BlocklistConfig) (*Blocklist, error) {
	b := &Blocklist{path: cfg.Path}

	raw := cfg.Categories
	if cfg.Path != "" {
		loaded, err := loadBlocklistFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		raw = loaded
	}
	if raw == nil {
		raw = DefaultBlockCategories
	}

	if err := b.setPatterns(raw); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Blocklist) Name() string { return "blocklist" }

func (b *Blocklist) Check(ctx context.Context, req Request) Verdict {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for category, patterns := range b.categories {
		for _, p := range patterns {
			if p.MatchString(req.Message) {
				v := Reject(req.Message, fmt.Sprintf("message contains blocked content (category: %s)", category))
				v.Annotations = map[string]any{"blocked_category": category}
				return v
			}
		}
	}
	return Allow(req.Message)
}

// Reload re-reads the pattern file. A broken file leaves the previous
// patterns in place.
func (b *Blocklist) Reload() error {
	if b.path == "" {
		return nil
	}
	raw, err := loadBlocklistFile(b.path)
	if err != nil {
		return err
	}
	return b.setPatterns(raw)
}

// Watch reloads the pattern file whenever it changes, until ctx is done.
func (b *Blocklist) Watch(ctx context.Context, logger *slog.Logger) error {
	if b.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("blocklist watcher: %w", err)
	}
	if err := watcher.Add(b.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", b.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := b.Reload(); err != nil {
					logger.Warn("blocklist reload failed, keeping previous patterns", "path", b.path, "err", err)
					continue
				}
				logger.Info("blocklist reloaded", "path", b.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("blocklist watcher error", "err", err)
			}
		}
	}()
	return nil
}

func (b *Blocklist) setPatterns(raw map[string][]string) error {
	compiled := make(map[string][]*regexp.Regexp, len(raw))
	for category, patterns := range raw {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("blocklist category %s: invalid pattern %q: %w", category, p, err)
			}
			compiled[category] = append(compiled[category], re)
		}
	}

	b.mu.Lock()
	b.categories = compiled
	b.mu.Unlock()
	return nil
}

func loadBlocklistFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocklist %s: %w", path, err)
	}
	var raw struct {
		Categories map[string][]string `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse blocklist %s: %w", path, err)
	}
	return raw.Categories, nil
}
