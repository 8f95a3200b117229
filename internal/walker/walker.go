// Package walker enumerates the regular files below a root directory as a
// depth-first stream of file descriptors.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/temirov/codestream/internal/types"
	"github.com/temirov/codestream/internal/utils"
)

// ErrNotDirectory reports a walk root that exists but is not a directory.
var ErrNotDirectory = errors.New("walk root is not a directory")

// Options configures a single walk. IgnorePatterns are matched against paths
// relative to the root. IgnoreFiles names per-directory pattern files, such as
// .gitignore, read with gitignore semantics: their patterns apply below the
// directory that holds them, a leading slash anchors to that directory, and a
// later "!" pattern re-includes what an earlier one excluded.
type Options struct {
	Root            string
	IgnorePatterns  []string
	IgnoreFiles     []string
	IncludeContent  bool
	MaxContentBytes int64
	Warn            func(message string)
}

// Summary aggregates what a completed walk emitted.
type Summary struct {
	Files   int
	Bytes   int64
	Skipped int
}

type walkContext struct {
	ctx      context.Context
	options  Options
	root     string
	visit    func(types.FileDescriptor) error
	visited  map[directoryKey]struct{}
	patterns []string
	rules    []gitignore.Pattern
	summary  Summary
}

// Walk visits every regular file below options.Root in lexical order, descending
// into each directory as it is met. visit is called once per file as soon as the
// file is discovered. Any error reading the root or a subdirectory aborts the walk.
// Directories reached twice, for example through a symlink loop, are entered once.
func Walk(ctx context.Context, options Options, visit func(types.FileDescriptor) error) (Summary, error) {
	if visit == nil {
		return Summary{}, fmt.Errorf("walker: visit callback is nil")
	}
	if options.Root == "" {
		return Summary{}, fmt.Errorf("walker: root path is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options.Warn == nil {
		options.Warn = func(string) {}
	}

	absoluteRoot, absErr := filepath.Abs(options.Root)
	if absErr != nil {
		return Summary{}, fmt.Errorf("resolve walk root %s: %w", options.Root, absErr)
	}
	info, statErr := os.Stat(absoluteRoot)
	if statErr != nil {
		return Summary{}, fmt.Errorf("stat walk root %s: %w", absoluteRoot, statErr)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%s: %w", absoluteRoot, ErrNotDirectory)
	}

	walk := &walkContext{
		ctx:      ctx,
		options:  options,
		root:     absoluteRoot,
		visit:    visit,
		visited:  make(map[directoryKey]struct{}),
		patterns: utils.DeduplicatePatterns(options.IgnorePatterns),
	}
	if err := walk.walkDirectory(absoluteRoot); err != nil {
		return walk.summary, err
	}
	return walk.summary, nil
}

func (walk *walkContext) walkDirectory(directoryPath string) error {
	key, keyErr := identify(directoryPath)
	if keyErr != nil {
		return fmt.Errorf("identify directory %s: %w", directoryPath, keyErr)
	}
	if _, seen := walk.visited[key]; seen {
		walk.options.Warn(fmt.Sprintf("skipping already visited directory %s", directoryPath))
		return nil
	}
	walk.visited[key] = struct{}{}

	entries, readErr := os.ReadDir(directoryPath)
	if readErr != nil {
		return fmt.Errorf("read directory %s: %w", directoryPath, readErr)
	}
	if len(walk.options.IgnoreFiles) > 0 {
		loaded, loadErr := walk.directoryIgnoreRules(directoryPath, utils.RelativePathOrSelf(directoryPath, walk.root))
		if loadErr != nil {
			return loadErr
		}
		inherited := walk.rules
		defer func() { walk.rules = inherited }()
		walk.rules = append(walk.rules, loaded...)
	}

	for _, entry := range entries {
		if err := walk.ctx.Err(); err != nil {
			return err
		}

		childPath := filepath.Join(directoryPath, entry.Name())
		relativePath := utils.RelativePathOrSelf(childPath, walk.root)
		if utils.ShouldIgnoreByPath(relativePath, walk.patterns) {
			walk.summary.Skipped++
			continue
		}

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			target, statErr := os.Stat(childPath)
			if statErr != nil {
				walk.options.Warn(fmt.Sprintf("skipping unresolvable symlink %s: %v", childPath, statErr))
				walk.summary.Skipped++
				continue
			}
			mode = target.Mode().Type()
		}
		if walk.ignoredByRules(relativePath, mode.IsDir()) {
			walk.summary.Skipped++
			continue
		}

		switch {
		case mode.IsDir():
			if err := walk.walkDirectory(childPath); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := walk.emitFile(childPath, relativePath); err != nil {
				return err
			}
		default:
			walk.summary.Skipped++
		}
	}
	return nil
}

func (walk *walkContext) emitFile(filePath string, relativePath string) error {
	info, statErr := os.Stat(filePath)
	if statErr != nil {
		return fmt.Errorf("stat file %s: %w", filePath, statErr)
	}

	descriptor := types.NewFileDescriptor(relativePath)
	if walk.options.IncludeContent {
		content, included, contentErr := walk.readContent(filePath, info.Size())
		if contentErr != nil {
			return contentErr
		}
		descriptor.Content = content
		descriptor.HasContent = included
	}

	if err := walk.visit(descriptor); err != nil {
		return err
	}
	walk.summary.Files++
	walk.summary.Bytes += info.Size()
	return nil
}

func (walk *walkContext) readContent(filePath string, size int64) (string, bool, error) {
	if walk.options.MaxContentBytes > 0 && size > walk.options.MaxContentBytes {
		walk.options.Warn(fmt.Sprintf("omitting content of %s: %s exceeds limit", filePath, utils.FormatFileSize(size)))
		return "", false, nil
	}
	fileBytes, readErr := os.ReadFile(filePath)
	if readErr != nil {
		return "", false, fmt.Errorf("read file %s: %w", filePath, readErr)
	}
	if utils.IsBinary(fileBytes) {
		return "", false, nil
	}
	return string(fileBytes), true, nil
}
