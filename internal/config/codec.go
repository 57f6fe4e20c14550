package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"
)

// Format is a configuration document syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the document format from a file extension. Anything that
// is not .yaml/.yml is TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config format %q (expected toml or yaml)", name)
	}
}

// Load reads, decodes and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, err := Read(f, FormatForPath(path))
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Read decodes and validates a config document. Unknown keys, empty documents
// and semantic problems are reported as *ConfigError.
func Read(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigError{Problems: []string{"document is empty"}}
	}

	cfg := &Config{}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, &ConfigError{Problems: []string{err.Error()}, Err: err}
		}
	default:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return nil, &ConfigError{Problems: []string{err.Error()}, Err: err}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			problems := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				problems = append(problems, fmt.Sprintf("unknown key %q", key.String()))
			}
			sort.Strings(problems)
			return nil, &ConfigError{Problems: problems}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes cfg canonically: repositories ordered by name, no indentation.
func Write(w io.Writer, cfg *Config, format Format) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := toml.NewEncoder(w)
		enc.Indent = ""
		return enc.Encode(cfg)
	}
}

// Marshal returns the canonical encoding of cfg.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, cfg, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save validates cfg and writes it to path in the format implied by its
// extension. The file is replaced by rename so a concurrent Load sees either
// the old or the new content.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := Marshal(cfg, FormatForPath(path))
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
