// Package output writes bytecraft results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bytecraft/internal/trace"
)

// WriteClass writes class bytes to <dir>/<name>.class, where name is an
// internal class name such as "java/lang/String".
func WriteClass(dir, name string, data []byte) error {
	return WriteFile(filepath.Join(dir, filepath.FromSlash(name)+".class"), data)
}

// WriteFile writes data to path, creating its parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteTrace writes an event listing to path, one event per line.
func WriteTrace(path string, events []trace.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if err := trace.Print(f, events); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteTraceCBOR writes events in their canonical CBOR encoding.
func WriteTraceCBOR(path string, events []trace.Event) error {
	data, err := trace.Marshal(events)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteDOT writes a DOT graph to <dir>/<name>.dot. name may contain path
// separators for directory grouping; other unsafe characters are replaced.
func WriteDOT(dir, name, dot string) error {
	return WriteFile(filepath.Join(dir, FileName(name)+".dot"), []byte(dot))
}

// FileName maps a class or method name to a relative file path.
// "demo/Util.log(I)V" → "demo/Util.log_I_V".
func FileName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c == '/':
			b.WriteRune(filepath.Separator)
		case c == '.' || c == '-' || c == '_' || c == '$',
			c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// WriteJSON writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
