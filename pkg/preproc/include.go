// Include path handling for the preprocessor.
package preproc

import (
	"os"
	"path/filepath"
	"strings"
)

// MaxIncludeDepth is the maximum allowed include nesting.
const MaxIncludeDepth = 200

// IncludeResolver handles include path resolution.
type IncludeResolver struct {
	UserPaths    []string // -I directories
	CurrentDir   string   // Directory of file currently being processed
	includeStack []string // Stack of included files for cycle detection
}

// NewIncludeResolver creates a new include resolver.
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{UserPaths: []string{}}
}

// AddUserPath adds a -I include directory.
func (r *IncludeResolver) AddUserPath(path string) {
	r.UserPaths = append(r.UserPaths, path)
}

// SetCurrentFile sets the current file being processed (for relative includes).
func (r *IncludeResolver) SetCurrentFile(filename string) {
	r.CurrentDir = filepath.Dir(filename)
}

// Resolve finds an include file: the including file's directory first,
// then each -I directory in order.
func (r *IncludeResolver) Resolve(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", &IncludeError{Filename: filename}
	}

	var searchPaths []string
	if r.CurrentDir != "" {
		searchPaths = append(searchPaths, r.CurrentDir)
	}
	searchPaths = append(searchPaths, r.UserPaths...)

	for _, dir := range searchPaths {
		fullPath := filepath.Join(dir, filename)
		if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
			absPath, err := filepath.Abs(fullPath)
			if err != nil {
				absPath = fullPath
			}
			return absPath, nil
		}
	}

	return "", &IncludeError{Filename: filename, Searched: searchPaths}
}

// PushFile pushes a file onto the include stack.
// Returns an error if the file is already in the stack (circular include).
func (r *IncludeResolver) PushFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	for _, f := range r.includeStack {
		if f == absPath {
			return &CircularIncludeError{Path: absPath, Stack: append([]string(nil), r.includeStack...)}
		}
	}

	r.includeStack = append(r.includeStack, absPath)
	return nil
}

// PopFile removes the current file from the include stack.
func (r *IncludeResolver) PopFile() {
	if len(r.includeStack) > 0 {
		r.includeStack = r.includeStack[:len(r.includeStack)-1]
	}
}

// IncludeDepth returns the current include nesting depth.
func (r *IncludeResolver) IncludeDepth() int {
	return len(r.includeStack)
}

// IncludeError indicates that an include file was not found.
type IncludeError struct {
	Filename string
	Searched []string
}

func (e *IncludeError) Error() string {
	if len(e.Searched) == 0 {
		return "could not find include file '" + e.Filename + "'"
	}
	return "could not find include file '" + e.Filename + "' (searched " + strings.Join(e.Searched, ", ") + ")"
}

// CircularIncludeError indicates a circular include dependency.
type CircularIncludeError struct {
	Path  string
	Stack []string
}

func (e *CircularIncludeError) Error() string {
	var sb strings.Builder
	sb.WriteString("circular include of ")
	sb.WriteString(filepath.Base(e.Path))
	sb.WriteString(" (via ")
	for i, f := range e.Stack {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(filepath.Base(f))
	}
	sb.WriteString(")")
	return sb.String()
}
