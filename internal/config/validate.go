package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string

	// backend
	b := c.Backend
	if !isHTTPURL(b.Origin) {
		errs = append(errs, "backend.origin must be an http(s) url")
	}
	if b.ChatURL != "" && !isHTTPURL(b.ChatURL) {
		errs = append(errs, "backend.chatUrl must be an http(s) url")
	}

	// session
	s := c.Session
	if s.AgentTimeoutS < 0 {
		errs = append(errs, "session.agentTimeoutSeconds must be non-negative")
	}
	if s.RPCTimeoutS < 0 {
		errs = append(errs, "session.rpcTimeoutSeconds must be non-negative")
	}

	// ui
	if c.UI.ReadingWPM < 0 {
		errs = append(errs, "ui.readingWpm must be non-negative")
	}

	// logging
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		errs = append(errs, "logging rotation limits must be non-negative")
	}

	// debug
	if c.Debug.Enabled && c.Debug.Addr == "" {
		errs = append(errs, "debug.addr is required when the inspector is enabled")
	}

	return errs
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// CheckUnknownFields returns the sorted dotted paths of keys in raw that no
// Config field is tagged with.
func CheckUnknownFields(raw map[string]any) []string {
	var unknown []string
	collectUnknown(raw, reflect.TypeOf(Config{}), "", &unknown)
	sort.Strings(unknown)
	return unknown
}

func collectUnknown(data map[string]any, t reflect.Type, prefix string, out *[]string) {
	fields := jsonFields(t)
	for key, val := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		ft, ok := fields[key]
		if !ok {
			*out = append(*out, path)
			continue
		}
		if nested, isObj := val.(map[string]any); isObj && ft.Kind() == reflect.Struct {
			collectUnknown(nested, ft, path, out)
		}
	}
}

// jsonFields maps the json names of t's fields to their types.
func jsonFields(t reflect.Type) map[string]reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	fields := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		fields[name] = ft
	}
	return fields
}
