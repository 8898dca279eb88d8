// Package manifest handles loading and validation of the hdlenv workspace
// manifest.
//
// The manifest is a JSONC document (JSON with Comments), so this package
// uses github.com/tidwall/jsonc to strip comments before parsing with the
// standard encoding/json library.
//
// The package locates the manifest in its standard paths within the
// host repository, parses it, supplies the built-in default that
// mirrors the Hdl21 layout when no file exists, and resolves
// workspace-relative paths against the host repository root.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fennec-eda/hdlenv/internal/model"
	"github.com/tidwall/jsonc"
)

// DefaultSandboxImage is the container image used for sandbox runs when
// the manifest does not name one. A Debian-based Python image ships with
// git, which the clone step needs.
const DefaultSandboxImage = "python:3.12-bookworm"

// Manifest describes a development workspace: which repositories to clone
// next to the host repository, which Python packages to install from them,
// and how to register commit hooks.
//
// Boolean fields that default to true use pointer types so that an absent
// field can be distinguished from an explicit false.
type Manifest struct {
	// Name is the workspace identifier. It is embedded in Docker labels
	// and sandbox container names, so it is restricted to alphanumeric
	// characters and hyphens.
	Name string `json:"name"`

	// WorkspaceDir is the directory holding sibling repositories,
	// relative to the host repository root. Defaults to ".." — the
	// parent directory of the checkout.
	WorkspaceDir string `json:"workspaceDir,omitempty"`

	// Python is the interpreter used for pip installs and import checks.
	// Defaults to "python3". The --python flag overrides it.
	Python string `json:"python,omitempty"`

	// Repos lists repositories cloned into the workspace directory.
	Repos []Repo `json:"repos,omitempty"`

	// Packages lists Python packages installed from workspace paths,
	// in installation order.
	Packages []Package `json:"packages,omitempty"`

	// Hooks configures Git hook registration in the host repository.
	Hooks Hooks `json:"hooks,omitzero"`

	// Sandbox configures the optional Docker sandbox for --sandbox runs.
	Sandbox Sandbox `json:"sandbox,omitzero"`
}

// Repo describes one repository to clone into the workspace.
type Repo struct {
	// Name identifies the repository in output and step names.
	Name string `json:"name"`

	// URL is the clone URL (https or ssh). Required.
	URL string `json:"url"`

	// Path is the clone destination relative to the workspace root.
	// Defaults to Name.
	Path string `json:"path,omitempty"`

	// Ref is an optional branch or tag passed to `git clone --branch`.
	Ref string `json:"ref,omitempty"`
}

// ClonePath returns the clone destination relative to the workspace root.
func (r *Repo) ClonePath() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}

// Package describes one Python package to install from the workspace.
type Package struct {
	// Name is the pip distribution name (e.g. "vlsirtools"). Required.
	Name string `json:"name"`

	// Path is the package source directory relative to the workspace
	// root (e.g. "Vlsir/bindings/python"). Required.
	Path string `json:"path"`

	// Extras lists optional dependency groups, appended to the install
	// requirement as "[extra1,extra2]".
	Extras []string `json:"extras,omitempty"`

	// Editable selects `pip install -e` when true. Defaults to true —
	// a development workspace wants source changes visible immediately.
	Editable *bool `json:"editable,omitempty"`

	// Module is the import name used by the verify step. Defaults to
	// Name with hyphens replaced by underscores.
	Module string `json:"module,omitempty"`
}

// IsEditable reports whether the package is installed in editable mode.
// An absent "editable" field counts as true.
func (p *Package) IsEditable() bool {
	return p.Editable == nil || *p.Editable
}

// ImportModule returns the module name the verify step imports.
func (p *Package) ImportModule() string {
	if p.Module != "" {
		return p.Module
	}
	// pip normalizes distribution names with hyphens; import names use
	// underscores instead.
	return strings.ReplaceAll(p.Name, "-", "_")
}

// Requirement returns the pip install requirement for this package:
// the workspace-relative path with the extras suffix attached
// (e.g. `Hdl21[dev]`). pip resolves the path against the process
// working directory, so installs run in the workspace root.
func (p *Package) Requirement() string {
	if len(p.Extras) == 0 {
		return p.Path
	}
	return fmt.Sprintf("%s[%s]", p.Path, strings.Join(p.Extras, ","))
}

// Hooks configures Git hook registration.
type Hooks struct {
	// PreCommit registers the pre-commit framework's hook in the host
	// repository. Defaults to true.
	PreCommit *bool `json:"preCommit,omitempty"`
}

// PreCommitEnabled reports whether pre-commit hook registration is on.
// An absent field counts as true.
func (h *Hooks) PreCommitEnabled() bool {
	return h.PreCommit == nil || *h.PreCommit
}

// Sandbox configures the Docker sandbox used by `hdlenv setup --sandbox`.
type Sandbox struct {
	// Image is the container image to run. Defaults to DefaultSandboxImage.
	Image string `json:"image,omitempty"`

	// Ports lists container ports published to the same port on the
	// host (e.g. 8888 for notebook servers). May be empty.
	Ports []int `json:"ports,omitempty"`
}

// WorkspaceRoot resolves the workspace directory against the host
// repository root and returns a cleaned absolute path.
func (m *Manifest) WorkspaceRoot(repoRoot string) string {
	dir := m.WorkspaceDir
	if dir == "" {
		dir = ".."
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Clean(filepath.Join(repoRoot, dir))
}

// SandboxImage returns the sandbox container image, falling back to the
// built-in default.
func (m *Manifest) SandboxImage() string {
	if m.Sandbox.Image != "" {
		return m.Sandbox.Image
	}
	return DefaultSandboxImage
}

// Default returns the built-in manifest that reproduces the original Hdl21
// bootstrap sequence: clone VLSIR next to the checkout, install the VLSIR
// bindings and VlsirTools, then install Hdl21 itself with its dev extras.
func Default() *Manifest {
	return &Manifest{
		Name:         "hdl21",
		WorkspaceDir: "..",
		Python:       "python3",
		Repos: []Repo{
			{Name: "Vlsir", URL: "https://github.com/Vlsir/Vlsir.git", Path: "Vlsir"},
		},
		Packages: []Package{
			{Name: "vlsir", Path: "Vlsir/bindings/python"},
			{Name: "vlsirtools", Path: "Vlsir/VlsirTools"},
			{Name: "hdl21", Path: "Hdl21", Extras: []string{"dev"}, Module: "hdl21"},
		},
	}
}

// Load reads a manifest file, strips JSONC comments, and parses it.
//
// The manifest format officially allows comments and trailing commas,
// so the raw bytes pass through jsonc.ToJSON before encoding/json sees
// them. Unknown fields are silently ignored.
//
// Returns a CLIError with ExitManifestInvalid if the file does not exist
// or does not parse.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitManifestInvalid,
				fmt.Sprintf("manifest not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	// jsonc.ToJSON blanks out comments and trailing commas, leaving
	// plain JSON for encoding/json.
	cleanJSON := jsonc.ToJSON(data)

	var m Manifest
	if err := json.Unmarshal(cleanJSON, &m); err != nil {
		return nil, model.WrapCLIError(
			model.ExitManifestInvalid,
			fmt.Sprintf("failed to parse manifest at %s", path),
			err,
		)
	}

	applyDefaults(&m)
	return &m, nil
}

// Find searches for a manifest in the standard locations within the host
// repository root.
//
// The search order:
//  1. <repoRoot>/.hdlenv/config.json (preferred — keeps the repo root tidy
//     and shares the .hdlenv directory with the run journal)
//  2. <repoRoot>/.hdlenv.json (root-level alternative)
//
// Returns the path of the first file found, or ok=false when neither
// location has one. A missing manifest is not an error: setup falls back
// to the built-in default.
func Find(repoRoot string) (path string, ok bool) {
	candidates := []string{
		filepath.Join(repoRoot, ".hdlenv", "config.json"),
		filepath.Join(repoRoot, ".hdlenv.json"),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

// Resolve produces the effective manifest for a host repository.
//
// Resolution order:
//  1. explicitPath, when given (--config flag). A missing explicit path
//     is an error.
//  2. The standard search locations (Find).
//  3. The built-in default (Default), reported with source "builtin".
//
// The returned source is the path the manifest was loaded from, or
// "builtin" for the default. The manifest is validated before it is
// returned; validation problems are joined into a single CLIError with
// ExitManifestInvalid.
func Resolve(repoRoot, explicitPath string) (*Manifest, string, error) {
	var (
		m      *Manifest
		source string
		err    error
	)

	switch {
	case explicitPath != "":
		m, err = Load(explicitPath)
		source = explicitPath
	default:
		if found, ok := Find(repoRoot); ok {
			m, err = Load(found)
			source = found
		} else {
			m = Default()
			source = "builtin"
		}
	}
	if err != nil {
		return nil, "", err
	}

	if problems := Validate(m); len(problems) > 0 {
		messages := make([]string, len(problems))
		for i := range problems {
			messages[i] = problems[i].Error()
		}
		return nil, "", model.NewCLIError(
			model.ExitManifestInvalid,
			fmt.Sprintf("invalid manifest (%s): %s", source, strings.Join(messages, "; ")),
		)
	}

	return m, source, nil
}

// applyDefaults fills zero-valued manifest fields with their documented
// defaults so downstream code never has to re-derive them.
func applyDefaults(m *Manifest) {
	if m.WorkspaceDir == "" {
		m.WorkspaceDir = ".."
	}
	if m.Python == "" {
		m.Python = "python3"
	}
	for i := range m.Repos {
		if m.Repos[i].Path == "" {
			m.Repos[i].Path = m.Repos[i].Name
		}
	}
}
