package walker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const (
	// GitIgnoreFileName lists patterns excluded by git.
	GitIgnoreFileName = ".gitignore"
	// IgnoreFileName lists patterns excluded from snapshots only.
	IgnoreFileName = ".ignore"
	// GitDirectoryPattern excludes the git metadata directory.
	GitDirectoryPattern = ".git/"

	binarySectionHeader = "[binary]"
	ignoreSectionHeader = "[ignore]"
)

// LoadIgnoreFilePatterns reads one ignore file. Blank lines and comments are
// skipped, as is any [binary] section. A missing file yields no patterns.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openErr := os.Open(ignoreFilePath)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return nil, nil
		}
		return nil, openErr
	}
	defer fileHandle.Close()

	var ignorePatterns []string
	currentSection := ignoreSectionHeader
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") {
			continue
		}
		if strings.EqualFold(trimmedLine, binarySectionHeader) {
			currentSection = binarySectionHeader
			continue
		}
		if strings.EqualFold(trimmedLine, ignoreSectionHeader) {
			currentSection = ignoreSectionHeader
			continue
		}
		if currentSection == ignoreSectionHeader {
			ignorePatterns = append(ignorePatterns, trimmedLine)
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, scanErr
	}
	return ignorePatterns, nil
}

// directoryIgnoreRules loads every configured ignore file of one directory as
// gitignore patterns scoped to that directory.
func (walk *walkContext) directoryIgnoreRules(directoryPath string, relativeDirectory string) ([]gitignore.Pattern, error) {
	var domain []string
	if relativeDirectory != "." {
		domain = strings.Split(relativeDirectory, "/")
	}
	var rules []gitignore.Pattern
	for _, fileName := range walk.options.IgnoreFiles {
		loaded, loadErr := LoadIgnoreFilePatterns(filepath.Join(directoryPath, fileName))
		if loadErr != nil {
			return nil, fmt.Errorf("load %s from %s: %w", fileName, directoryPath, loadErr)
		}
		for _, pattern := range loaded {
			rules = append(rules, gitignore.ParsePattern(pattern, domain))
		}
	}
	return rules, nil
}

// ignoredByRules reports whether the ignore files seen so far exclude
// relativePath. The last matching pattern decides.
func (walk *walkContext) ignoredByRules(relativePath string, isDirectory bool) bool {
	if len(walk.rules) == 0 {
		return false
	}
	return gitignore.NewMatcher(walk.rules).Match(strings.Split(relativePath, "/"), isDirectory)
}
