package tuning

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of tuning overrides, in YAML or JSON.
type File struct {
	Entries []Entry `yaml:"entries" json:"entries"`
}

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// FormatForPath picks the encoding from a file extension; anything other than
// .json is read as YAML.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

func Decode(r io.Reader, format string) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f File
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unknown tuning format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode tuning %s: %w", format, err)
	}
	return f.Entries, nil
}

func Encode(w io.Writer, format string, entries []Entry) error {
	f := File{Entries: entries}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown tuning format %q", format)
	}
}

// LoadFile reads overrides from path and layers them over base.
func LoadFile(base *Database, path string) (*Database, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tuning file: %w", err)
	}
	defer func() { _ = fh.Close() }()

	entries, err := Decode(fh, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	db, err := base.With(entries...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// WriteFile stores entries at path, creating parent directories.
func WriteFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(fh, FormatForPath(path), entries); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
