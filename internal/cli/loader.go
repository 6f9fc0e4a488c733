package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/lavignes/roolz/internal/watcher"
)

// CollectRuleFiles expands a mix of file and directory paths into the
// sorted list of rule source files they denote.
//
// Directories are walked recursively for files with the rule extension.
// A path that is neither a rule file nor a directory is an error, as is
// a directory containing no rule files.
func CollectRuleFiles(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}

		if !info.IsDir() {
			if !watcher.IsRuleFile(path) {
				return nil, fmt.Errorf("%s is not a rule source (expected %s extension)", path, watcher.RuleFileExt)
			}
			files = append(files, path)
			continue
		}

		found, err := FindRuleFiles(path)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no rule sources found in %s", path)
		}
		files = append(files, found...)
	}

	sort.Strings(files)
	return files, nil
}

// FindRuleFiles walks dir and returns every rule source path below it.
func FindRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && watcher.IsRuleFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return files, nil
}
