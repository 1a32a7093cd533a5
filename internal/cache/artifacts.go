package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SlotFile is one file found in a slot directory
type SlotFile struct {
	Name string
	Size int64
}

// CollectOutputs scans a slot directory and returns its files.
// A slot that does not exist yet has no outputs.
func CollectOutputs(fs afero.Fs, dir string) ([]SlotFile, error) {
	var outputs []SlotFile

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No outputs yet
		}
		return nil, fmt.Errorf("failed to read slot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		outputs = append(outputs, SlotFile{Name: entry.Name(), Size: entry.Size()})
	}

	return outputs, nil
}

// SlotSize sums the size of all files in a slot directory
func SlotSize(fs afero.Fs, dir string) (int64, error) {
	outputs, err := CollectOutputs(fs, dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, output := range outputs {
		total += output.Size
	}

	return total, nil
}

// removeTempOutputs deletes binaries left behind by interrupted builds
func removeTempOutputs(fs afero.Fs, dir string) (int, error) {
	outputs, err := CollectOutputs(fs, dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, output := range outputs {
		if !strings.HasSuffix(output.Name, tempSuffix) {
			continue
		}

		if err := fs.Remove(filepath.Join(dir, output.Name)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", output.Name, err)
		}

		removed++
	}

	return removed, nil
}
