package helpers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ducksouplab/framemixer/env"
)

// Open resolves name against the configured root
func Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(env.ConfigRoot, name))
}

func FileExists(name string) bool {
	_, err := os.Stat(filepath.Join(env.ConfigRoot, name))
	return err == nil
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// RecordingPath builds "<dir>/<yyyymmdd-hhmmss.mmm>-<name>.<ext>" and creates dir if needed
func RecordingPath(dir, name, ext string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, NowPrefix()+"-"+ParseString(name)+"."+strings.TrimPrefix(ext, ".")), nil
}

// ReadFile returns the contents of a file below the configured root
func ReadFile(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(env.ConfigRoot, name))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
