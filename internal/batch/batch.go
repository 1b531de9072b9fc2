// Package batch names and discovers the files of a batch run.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Output decides where dewarped pages are written.
type Output struct {
	// Dir receives the pages. A relative Dir is resolved against the
	// parent of the input's directory.
	Dir       string
	Overwrite bool
}

// Path names page i of n dewarped from filename. With Overwrite the first
// page replaces the input and further pages are numbered.
func (o Output) Path(filename string, i, n int) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	suffix := ""
	if n > 1 {
		suffix = fmt.Sprint(i)
	}

	switch {
	case o.Overwrite && i == 0:
		return filename, nil
	case o.Overwrite:
		return filepath.Join(filepath.Dir(filename), base+"_dewarped"+suffix+ext), nil
	case o.Dir != "":
		dir := o.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(filepath.Dir(filename)), dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(dir, base+suffix+ext), nil
	}
	return filepath.Join(filepath.Dir(filename), base+"_dewarped"+suffix+ext), nil
}

func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ExpandDirectory lists the image files directly inside dir.
func ExpandDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if IsImageFile(path) {
			imageFiles = append(imageFiles, path)
		}
	}
	return imageFiles, nil
}

func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".webp":
		return true
	}
	return false
}

// Tally counts how the files of a run ended. It is safe for concurrent use.
type Tally struct {
	done, skipped atomic.Int64
}

func (t *Tally) Done() { t.done.Add(1) }
func (t *Tally) Skip() { t.skipped.Add(1) }

func (t *Tally) Counts() (done, skipped int) {
	return int(t.done.Load()), int(t.skipped.Load())
}

// ExitCode is 1 when every file of the run was skipped.
func (t *Tally) ExitCode() int {
	if done, skipped := t.Counts(); done == 0 && skipped > 0 {
		return 1
	}
	return 0
}
