package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// EncodeCanonical renders cfg's recognized fields as canonical TOML, for
// --debug output. A config that is encoded then reparsed with
// FoldAllFile(Root(), ...) yields an equal effective config for every field
// the encoding carries.
func EncodeCanonical(cfg Config) (string, error) {
	var buf bytes.Buffer

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding config as toml: %w", err)
	}

	return buf.String(), nil
}

// fileConfig mirrors the recognized keys of an __all__.toml/<name>.toml file.
// Pointer and nil-able fields let fold() distinguish "absent" from "zero
// value", which BurntSushi/toml preserves for us on decode.
type fileConfig struct {
	Ignore      *bool             `toml:"ignore"`
	Extensions  []string          `toml:"extensions"`
	ExePath     *string           `toml:"exe-path"`
	Args        []string          `toml:"args"`
	Envs        map[string]string `toml:"envs"`
	ExternFiles []string          `toml:"extern-files"`
	PrintErrs   *bool             `toml:"print-errs"`
	Permits     *int              `toml:"permits"`
	Permit      *int              `toml:"permit"`
	Epsilon     *float64          `toml:"epsilon"`
	Timeout     *string           `toml:"timeout"`
	Assert      *assertFile       `toml:"assert"`
	Extend      *extendFile       `toml:"extend"`
}

type assertFile struct {
	ExitCode *int         `toml:"exit-code"`
	Golden   []goldenFile `toml:"golden"`
}

type goldenFile struct {
	File  string          `toml:"file"`
	Equal bool            `toml:"equal"`
	Match []countSpecFile `toml:"match"`
	Value []valueSpecFile `toml:"value"`
}

type countSpecFile struct {
	Pattern      string `toml:"pattern"`
	Count        *int   `toml:"count"`
	CountAtLeast *int   `toml:"count-at-least"`
	CountAtMost  *int   `toml:"count-at-most"`
}

type valueSpecFile struct {
	PatternBefore string   `toml:"pattern-before"`
	PatternAfter  string   `toml:"pattern-after"`
	Value         *float64 `toml:"value"`
	ValueAtLeast  *float64 `toml:"value-at-least"`
	ValueAtMost   *float64 `toml:"value-at-most"`
	Epsilon       *float64 `toml:"epsilon"`
}

type extendFile struct {
	Args        []string          `toml:"args"`
	Envs        map[string]string `toml:"envs"`
	ExternFiles []string          `toml:"extern-files"`
}

// loadFile decodes a TOML config file, rejecting unknown keys.
func loadFile(path string) (*fileConfig, error) {
	var fc fileConfig

	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, wrapErr(path, fmt.Errorf("failed to parse: %w", err))
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, wrapErr(path, fmt.Errorf("unknown key(s): %v", undecoded))
	}

	return &fc, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}
