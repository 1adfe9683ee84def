package badge

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the badge in the i3blocks/polybar script format: full text,
// short text and color, one per line. The file is replaced atomically.
type FileSink struct {
	Path  string
	Label string // prefix for the full text, e.g. "🍅"
}

func (f FileSink) Show(b Badge) error {
	full := b.Text
	if f.Label != "" {
		full = f.Label + " " + b.Text
	}
	content := fmt.Sprintf("%s\n%s\n%s\n", full, b.Text, b.Color)

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create badge directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".badge-*")
	if err != nil {
		return fmt.Errorf("failed to create badge file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write badge file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write badge file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace badge file %s: %w", f.Path, err)
	}
	return nil
}
