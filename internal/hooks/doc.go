// Package hooks integrates the pre-commit framework with the hdlenv CLI.
//
// This package handles:
//   - Building `pre-commit install`/`pre-commit uninstall` command lines,
//     falling back to `<python> -m pre_commit` when no standalone binary
//     is on PATH
//   - Parsing .pre-commit-config.yaml (via gopkg.in/yaml.v3) so
//     `hdlenv status` can summarize the configured hooks
//   - Inspecting and removing the .git/hooks/pre-commit script the
//     framework writes, without ever touching hand-written hooks
package hooks
