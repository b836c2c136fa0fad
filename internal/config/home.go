package config

import (
	"os"
	"path/filepath"
)

// Config file location relative to a project directory.
const (
	DirName  = ".visualexec"
	FileName = "config.yaml"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "VISUALEXEC_CONFIG"

// ResolveConfigPath returns the config file to load
// Priority order:
//  1. explicit (the --config flag, if set)
//  2. VISUALEXEC_CONFIG environment variable (if set)
//  3. the nearest .visualexec/config.yaml found walking up from start
//  4. .visualexec/config.yaml in start (may not exist)
func ResolveConfigPath(explicit, start string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = cwd
	}

	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	if path, ok := findConfigUp(start); ok {
		return path, nil
	}

	return filepath.Join(start, DirName, FileName), nil
}

// projectDir is the directory a relative dir in the config file at path is
// resolved against: the parent of .visualexec/, or the file's own directory.
func projectDir(path string) string {
	base := filepath.Dir(path)
	if filepath.Base(base) == DirName {
		return filepath.Dir(base)
	}
	return base
}

// findConfigUp looks for .visualexec/config.yaml in dir and its parents.
func findConfigUp(dir string) (string, bool) {
	current := dir
	for {
		candidate := filepath.Join(current, DirName, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root
			return "", false
		}
		current = parent
	}
}
