// Package voice maps public voice keys to provider voice identifiers.
//
// A Catalog is built once at startup and is read-only afterwards, so it can be
// shared between request goroutines without locking.
package voice

import (
	"fmt"
	"sort"
)

// DefaultKey is the public key used when a request names no voice or an unknown one.
const DefaultKey = "af_heart"

// Entry is a single public key to provider voice mapping.
type Entry struct {
	Key        string
	ProviderID string
}

// Defaults is the built-in catalog, in listing order.
var Defaults = []Entry{
	{Key: "af_heart", ProviderID: "en-US-AriaNeural"},
	{Key: "af_bella", ProviderID: "en-US-JennyNeural"},
	{Key: "af_nicole", ProviderID: "en-US-GuyNeural"},
	{Key: "af_nova", ProviderID: "en-US-DavisNeural"},
	{Key: "af_river", ProviderID: "en-US-TonyNeural"},
	{Key: "am_adam", ProviderID: "en-US-ChristopherNeural"},
	{Key: "am_michael", ProviderID: "en-US-EricNeural"},
	{Key: "am_onyx", ProviderID: "en-US-BrandonNeural"},
	{Key: "am_echo", ProviderID: "en-US-JasonNeural"},
	{Key: "am_puck", ProviderID: "en-US-SteffanNeural"},
}

// Catalog is an immutable, ordered voice lookup table.
type Catalog struct {
	keys       []string
	voices     map[string]string
	defaultKey string
}

// New builds a catalog from the built-in entries with overrides merged on top.
// Overrides replace existing keys in place; new keys are appended in sorted order.
// defaultKey must resolve after merging.
func New(overrides map[string]string, defaultKey string) (*Catalog, error) {
	if defaultKey == "" {
		defaultKey = DefaultKey
	}

	c := &Catalog{
		keys:       make([]string, 0, len(Defaults)+len(overrides)),
		voices:     make(map[string]string, len(Defaults)+len(overrides)),
		defaultKey: defaultKey,
	}
	for _, e := range Defaults {
		c.keys = append(c.keys, e.Key)
		c.voices[e.Key] = e.ProviderID
	}

	extra := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if v == "" {
			return nil, fmt.Errorf("voice %q has an empty provider id", k)
		}
		if _, ok := c.voices[k]; !ok {
			extra = append(extra, k)
		}
		c.voices[k] = v
	}
	sort.Strings(extra)
	c.keys = append(c.keys, extra...)

	if _, ok := c.voices[defaultKey]; !ok {
		return nil, fmt.Errorf("default voice %q is not in the catalog", defaultKey)
	}
	return c, nil
}

// Resolve returns the provider voice for key, falling back to the default
// voice for unknown or empty keys. It never fails.
func (c *Catalog) Resolve(key string) string {
	if v, ok := c.voices[key]; ok {
		return v
	}
	return c.voices[c.defaultKey]
}

// Keys returns the public voice keys in listing order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// DefaultKey returns the key used for fallback resolution.
func (c *Catalog) DefaultKey() string { return c.defaultKey }
