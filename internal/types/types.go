// Package types defines every cross‑package data structure used by the codestream server.
package types

import (
	"path"
	"strings"
)

const (
	ActionStream = "stream"

	CommandServe = "serve"
	CommandWalk  = "walk"
)

// FileDescriptor describes one regular file discovered by the walker.
// RelativePath is slash separated and never carries the walk root.
type FileDescriptor struct {
	RelativePath string
	Filename     string
	Extension    string
	Content      string
	HasContent   bool
}

// GeneratedFile is a path and body pair extracted from completion text.
type GeneratedFile struct {
	Path    string
	Content string
}

// NewFileDescriptor derives the filename and extension from a slash separated relative path.
func NewFileDescriptor(relativePath string) FileDescriptor {
	return FileDescriptor{
		RelativePath: relativePath,
		Filename:     Filename(relativePath),
		Extension:    FileExtension(relativePath),
	}
}

// FileExtension returns the lowercase extension of filePath without its leading dot.
func FileExtension(filePath string) string {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	return strings.ToLower(strings.TrimPrefix(path.Ext(normalized), "."))
}

// Filename returns the last element of a slash or backslash separated path.
func Filename(filePath string) string {
	return path.Base(strings.ReplaceAll(filePath, "\\", "/"))
}
