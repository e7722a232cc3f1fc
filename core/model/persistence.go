package model

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	scigoErrors "github.com/YuminosukeSato/bratbench/pkg/errors"
)

// SaveJSON writes v as indented JSON to filename, creating parent
// directories as needed.
//
//	err := model.SaveJSON("results/runs_1.json", results)
func SaveJSON(v interface{}, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return scigoErrors.Wrapf(err, "create directory %s", dir)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return scigoErrors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return WriteJSON(v, file)
}

// LoadJSON decodes filename into v.
func LoadJSON(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return scigoErrors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return ReadJSON(v, file)
}

// WriteJSON encodes v to w.
func WriteJSON(v interface{}, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return scigoErrors.Wrap(err, "failed to encode")
	}
	return nil
}

// ReadJSON decodes v from r.
func ReadJSON(v interface{}, r io.Reader) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return scigoErrors.Wrap(err, "failed to decode")
	}
	return nil
}
