// Package classpath locates class files in directories and jars and
// answers hierarchy questions from their headers.
package classpath

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is a directory or a jar of class files.
type Source interface {
	// Name is the path the source was opened from.
	Name() string
	// Read returns the bytes of an internal class name, or ok=false.
	Read(class string) (data []byte, ok bool, err error)
	// Walk calls fn for every class file in a stable order.
	Walk(fn func(class string, data []byte) error) error
	Close() error
}

// OpenSource opens path as a directory or, for .jar and .zip files, an
// archive.
func OpenSource(path string) (Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	if st.IsDir() {
		return &dirSource{root: path}, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jar" && ext != ".zip" {
		return nil, fmt.Errorf("classpath: %s is neither a directory nor a jar", path)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("classpath: open %s: %w", path, err)
	}
	s := &jarSource{path: path, zr: zr, files: make(map[string]*zip.File)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		s.files[strings.TrimSuffix(f.Name, ".class")] = f
	}
	return s, nil
}

type dirSource struct {
	root string
}

func (d *dirSource) Name() string { return d.root }

func (d *dirSource) Read(class string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(class)+".class"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("classpath: %w", err)
	}
	return data, true, nil
}

func (d *dirSource) Walk(fn func(class string, data []byte) error) error {
	return filepath.WalkDir(d.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("classpath: %w", err)
		}
		return fn(strings.TrimSuffix(filepath.ToSlash(rel), ".class"), data)
	})
}

func (d *dirSource) Close() error { return nil }

type jarSource struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

func (j *jarSource) Name() string { return j.path }

func (j *jarSource) Read(class string) ([]byte, bool, error) {
	f, ok := j.files[class]
	if !ok {
		return nil, false, nil
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil, false, fmt.Errorf("classpath: %s!%s: %w", j.path, f.Name, err)
	}
	return data, true, nil
}

func (j *jarSource) Walk(fn func(class string, data []byte) error) error {
	names := make([]string, 0, len(j.files))
	for name := range j.files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data, _, err := j.Read(name)
		if err != nil {
			return err
		}
		if err := fn(name, data); err != nil {
			return err
		}
	}
	return nil
}

func (j *jarSource) Close() error { return j.zr.Close() }

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
