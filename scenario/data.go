// Package scenario holds state shared between the steps of one scenario.
package scenario

import (
	"context"
	"maps"
	"sync"
)

// Data is a key/value store scoped to a single scenario. It is created
// fresh for every scenario, so nothing leaks between scenarios or workers.
type Data struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewData() *Data {
	return &Data{values: make(map[string]any)}
}

func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

func (d *Data) SetMultiple(values map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	maps.Copy(d.values, values)
}

// Get returns the value for key, or nil when unset.
func (d *Data) Get(key string) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.values[key]
}

// Lookup is Get with an explicit presence flag.
func (d *Data) Lookup(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// GetMultiple returns a map with one entry per key; unset keys map to nil.
func (d *Data) GetMultiple(keys ...string) map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = d.values[k]
	}
	return out
}

// All returns a copy of every stored value.
func (d *Data) All() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.values)
}

// String returns the value for key when it is a string.
func (d *Data) String(key string) (string, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

type dataKey struct{}

// WithData returns a copy of ctx carrying d.
func WithData(ctx context.Context, d *Data) context.Context {
	return context.WithValue(ctx, dataKey{}, d)
}

// FromContext returns the scenario's data, if any.
func FromContext(ctx context.Context) (*Data, bool) {
	d, ok := ctx.Value(dataKey{}).(*Data)
	return d, ok && d != nil
}
