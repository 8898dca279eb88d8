// validate.go provides validation for loaded manifests. Validation
// returns the complete list of problems rather than stopping at the
// first one, so a user can fix a hand-written manifest in one pass.
package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/fennec-eda/hdlenv/internal/model"
)

// ValidationError represents a specific validation failure in a manifest.
type ValidationError struct {
	// Field is the JSON field path that failed validation
	// (e.g., "packages[2].path").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate performs conformance checks on a manifest and returns a list
// of validation errors (empty list = valid manifest).
//
// Checks performed:
//   - Workspace name: alphanumeric + hyphens (embedded in Docker labels)
//   - Repos: URL required, names and clone paths unique
//   - Packages: name and path required, names unique
//   - Paths: repo and package paths must stay inside the workspace root
//     (relative, no ".." traversal)
//   - Sandbox ports: valid range, no duplicates
func Validate(m *Manifest) []ValidationError {
	var errors []ValidationError

	// Check 1: workspace name. The name keys Docker labels and container
	// names, so it follows the same rules as container names.
	if err := model.ValidateWorkspaceName(m.Name); err != nil {
		errors = append(errors, ValidationError{
			Field:   "name",
			Message: err.Error(),
		})
	}

	// Check 2: repositories.
	seenRepoNames := make(map[string]bool)
	seenRepoPaths := make(map[string]bool)
	for i := range m.Repos {
		repo := &m.Repos[i]
		field := fmt.Sprintf("repos[%d]", i)

		if repo.Name == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Message: "repository name must not be empty",
			})
		} else if seenRepoNames[repo.Name] {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate repository name %q", repo.Name),
			})
		}
		seenRepoNames[repo.Name] = true

		if repo.URL == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".url",
				Message: "clone URL must not be empty",
			})
		}

		path := repo.ClonePath()
		if path != "" && !filepath.IsLocal(path) {
			errors = append(errors, ValidationError{
				Field:   field + ".path",
				Message: fmt.Sprintf("clone path %q must be relative and stay inside the workspace root", path),
			})
		} else if seenRepoPaths[path] {
			errors = append(errors, ValidationError{
				Field:   field + ".path",
				Message: fmt.Sprintf("duplicate clone path %q", path),
			})
		}
		seenRepoPaths[path] = true
	}

	// Check 3: packages.
	seenPackages := make(map[string]bool)
	for i := range m.Packages {
		pkg := &m.Packages[i]
		field := fmt.Sprintf("packages[%d]", i)

		if pkg.Name == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Message: "package name must not be empty",
			})
		} else if seenPackages[pkg.Name] {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate package name %q", pkg.Name),
			})
		}
		seenPackages[pkg.Name] = true

		if pkg.Path == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".path",
				Message: "package path must not be empty",
			})
		} else if !filepath.IsLocal(pkg.Path) {
			errors = append(errors, ValidationError{
				Field:   field + ".path",
				Message: fmt.Sprintf("package path %q must be relative and stay inside the workspace root", pkg.Path),
			})
		}

		for j, extra := range pkg.Extras {
			if extra == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s.extras[%d]", field, j),
					Message: "extra must not be empty",
				})
			}
		}
	}

	// Check 4: sandbox ports. Published ports bind on the host, so they
	// follow host port rules and must be unique.
	seenPorts := make(map[int]bool)
	for i, port := range m.Sandbox.Ports {
		field := fmt.Sprintf("sandbox.ports[%d]", i)
		if port < 1 || port > 65535 {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("port %d out of range (1-65535)", port),
			})
			continue
		}
		if seenPorts[port] {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate port %d", port),
			})
		}
		seenPorts[port] = true
	}

	return errors
}
