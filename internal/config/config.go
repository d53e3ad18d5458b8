// Package config implements a minimal INI-style configuration reader:
// [section] headers, key = value pairs, and '#'/';' comment lines. Spec §6
// explicitly calls for only this minimal form, and no example repo in the
// retrieval pack parses this exact format, so it is hand-rolled against
// the standard library rather than grounded in a third-party parser (see
// the project's design ledger for the full justification).
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"evocore/internal/ecerr"
)

// Config holds parsed sections of key/value string pairs.
type Config struct {
	sections map[string]map[string]string
}

// Parse reads an INI-style document from r.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{sections: map[string]map[string]string{"": {}}}
	section := ""
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := cfg.sections[section]; !ok {
				cfg.sections[section] = map[string]string{}
			}
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, fmt.Errorf("%w: line %d: expected key = value", ecerr.ErrFormat, lineNo)
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			return nil, fmt.Errorf("%w: line %d: empty key", ecerr.ErrFormat, lineNo)
		}
		cfg.sections[section][key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ecerr.ErrIO, err)
	}
	return cfg, nil
}

// Get returns a raw string value from section/key.
func (c *Config) Get(section, key string) (string, bool) {
	s, ok := c.sections[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	return v, ok
}

// GetFloat parses section/key as a float64, falling back to def if absent.
func (c *Config) GetFloat(section, key string, def float64) (float64, error) {
	v, ok := c.Get(section, key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s: %v", ecerr.ErrFormat, section, key, err)
	}
	return f, nil
}

// GetInt parses section/key as an int, falling back to def if absent.
func (c *Config) GetInt(section, key string, def int) (int, error) {
	v, ok := c.Get(section, key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s.%s: %v", ecerr.ErrFormat, section, key, err)
	}
	return n, nil
}

// GetString returns section/key, falling back to def if absent.
func (c *Config) GetString(section, key, def string) string {
	v, ok := c.Get(section, key)
	if !ok {
		return def
	}
	return v
}

// GetBool parses section/key as a bool, falling back to def if absent.
func (c *Config) GetBool(section, key string, def bool) (bool, error) {
	v, ok := c.Get(section, key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s.%s: %v", ecerr.ErrFormat, section, key, err)
	}
	return b, nil
}

// Sections returns the names of every parsed section (excluding the
// implicit top-level "" section if it is empty).
func (c *Config) Sections() []string {
	out := make([]string, 0, len(c.sections))
	for name := range c.sections {
		if name == "" && len(c.sections[name]) == 0 {
			continue
		}
		out = append(out, name)
	}
	return out
}
