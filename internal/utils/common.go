package utils

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/paranoidnas/media/internal/constants"
	"github.com/twpayne/go-vfs/v4"
)

// EnvFile returns the dotenv file to load before parsing flags.
func EnvFile() string {
	if p := os.Getenv(constants.EnvPrefix + "ENV_FILE"); p != "" {
		return p
	}
	return constants.DefaultEnvFile
}

// LoadEnvFile loads the given dotenv file into the process environment.
// Variables already set are not overridden and a missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	Log.Debug().Str("what", path).Msg("Loading env file")
	return godotenv.Load(path)
}

// CreateIfNotExists creates the given directory, parents included, on the given filesystem.
func CreateIfNotExists(fs vfs.FS, path string) error {
	if _, err := fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		return vfs.MkdirAll(fs, path, constants.DefaultDirMode)
	}
	return nil
}

// CleanupSlice will clean a slice of strings of empty items
// Typos can be made on writing the cmd flags, so we need to make sure we don't use empty values.
func CleanupSlice(slice []string) []string {
	var cleanSlice []string
	for _, item := range slice {
		if strings.TrimSpace(item) == "" {
			continue
		}
		cleanSlice = append(cleanSlice, strings.TrimSpace(item))
	}
	return cleanSlice
}

// UniqueSlice removes duplicated entries from a slice, keeping the first occurrence.
func UniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	var list []string
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}
