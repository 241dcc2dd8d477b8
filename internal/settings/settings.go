// Package settings manages the whole-document YAML settings file.
// Only the price key has a validated contract; everything else is
// passed through untouched.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"log/slog"

	"gopkg.in/yaml.v3"

	"subbot/core/logger"
)

// PriceKey is the one key this package validates.
const PriceKey = "price"

// ErrInvalidPrice rejects non-positive price values.
var ErrInvalidPrice = errors.New("settings: price must be a positive integer")

// Document is a settings file loaded as a whole.
type Document struct {
	mu   sync.Mutex
	path string
	data map[string]any
}

// Load reads the YAML document at path. A missing file yields an empty
// document; saving will create it.
func Load(path string) (*Document, error) {
	doc := &Document{path: path, data: make(map[string]any)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Settings.LogAttrs(context.Background(), slog.LevelWarn, "settings file missing",
			slog.String("event", "load"),
			slog.String("path", path),
		)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &doc.data); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if doc.data == nil {
		doc.data = make(map[string]any)
	}
	return doc, nil
}

// Save writes the document back to its file.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked()
}

func (d *Document) saveLocked() error {
	raw, err := yaml.Marshal(d.data)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(d.path, raw, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", d.path, err)
	}
	return nil
}

// Price returns the current subscription price, or 0 when unset.
func (d *Document) Price() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch v := d.data[PriceKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// SetPrice validates and persists a new price.
func (d *Document) SetPrice(price int) error {
	if price <= 0 {
		return ErrInvalidPrice
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[PriceKey] = price
	if err := d.saveLocked(); err != nil {
		return err
	}

	logger.Settings.LogAttrs(context.Background(), slog.LevelInfo, "price updated",
		slog.String("event", "price.set"),
		slog.Int("price", price),
	)
	return nil
}

// Get returns an arbitrary key for pass-through reads.
func (d *Document) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.data[key]
	return v, ok
}
