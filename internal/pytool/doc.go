// Package pytool wraps the Python interpreter and pip for the hdlenv CLI.
//
// The package handles:
//   - Interpreter and pip version queries for `hdlenv status`
//   - Installed-package state via `pip show` (version, location,
//     editable project location)
//   - Building install/uninstall/import command lines for the setup and
//     clean orchestrations, which execute them on the host or inside the
//     sandbox container
//
// pip is always invoked as `<python> -m pip` so that package operations
// bind to the selected interpreter rather than whatever `pip` happens to
// be first on PATH.
package pytool
