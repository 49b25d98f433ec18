package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// toMap round-trips cfg through JSON so paths follow the json tags.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "knowledge.chunkSize").
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid array index: %s", key)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
	}
	return current, nil
}

// SetByPath sets a config value by dot-notation path. The path must name an
// existing setting, except that new entries may be added under providers.
// String values are converted to the type of the current value; lists take
// comma-separated items.
func SetByPath(cfg *Config, path string, value any) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	m, err := toMap(cfg)
	if err != nil {
		return err
	}

	parts := strings.Split(path, ".")
	parent := m
	for i, key := range parts[:len(parts)-1] {
		child, ok := parent[key]
		if !ok || child == nil {
			if i == 1 && parts[0] == "providers" {
				child = map[string]any{}
				parent[key] = child
			} else {
				return fmt.Errorf("unknown config path: %s", path)
			}
		}
		childMap, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot traverse into %T at %s", child, key)
		}
		parent = childMap
	}

	last := parts[len(parts)-1]
	current, exists := parent[last]
	if !exists {
		zero, optional := optionalPaths[path]
		switch {
		case optional:
			current = zero
		case len(parts) == 3 && parts[0] == "providers":
			switch last {
			case "apiBase", "apiKey", "defaultModel":
				current = ""
			}
		default:
			return fmt.Errorf("unknown config path: %s", path)
		}
	}
	parent[last] = parseValue(value, current)

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", path, err)
	}
	return nil
}

// optionalPaths are omitempty settings, absent from the JSON form when unset,
// with the zero value whose type guides parsing.
var optionalPaths = map[string]any{
	"general.logFile":         "",
	"knowledge.catalogue":     "",
	"knowledge.separators":    []any{},
	"embedder.dimension":      float64(0),
	"embedder.apiBase":        "",
	"embedder.apiKey":         "",
	"embedder.model":          "",
	"embedder.timeoutSeconds": float64(0),
	"vectorStore.path":        "",
	"vectorStore.url":         "",
	"vectorStore.apiKey":      "",
	"vectorStore.collection":  "",
	"vectorStore.dsn":         "",
	"llm.priority":            []any{},
	"llm.systemPrompt":        "",
	"interview.domains":       []any{},
	"speech.apiBase":          "",
	"speech.apiKey":           "",
	"speech.model":            "",
}

// parseValue converts string input to the shape of the value it replaces.
// Numbers and unknown types are guessed as bool, integer, float, then string.
func parseValue(v any, current any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	switch current.(type) {
	case string:
		return s
	case []any:
		return splitList(s)
	}

	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func splitList(s string) []any {
	out := []any{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Sanitize returns a copy of the config with API keys and the DSN password masked.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		return cfg
	}

	for name, prov := range out.Providers {
		prov.APIKey = maskString(prov.APIKey)
		out.Providers[name] = prov
	}
	out.Embedder.APIKey = maskString(out.Embedder.APIKey)
	out.VectorStore.APIKey = maskString(out.VectorStore.APIKey)
	out.Speech.APIKey = maskString(out.Speech.APIKey)
	if out.VectorStore.DSN != "" {
		out.VectorStore.DSN = maskDSN(out.VectorStore.DSN)
	}
	return &out
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// maskDSN hides the password of a postgres:// URL.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// ListPaths returns every leaf setting with its current value.
func ListPaths(cfg *Config) map[string]any {
	m, err := toMap(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	flattenMap("", m, result)
	return result
}

func flattenMap(prefix string, m map[string]any, result map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenMap(path, sub, result)
			continue
		}
		result[path] = v
	}
}
