// Package gitrepo wraps the git CLI for the repository inspection and
// clone commands hdlenv needs.
//
// Everything goes through os/exec and the user's own git binary. A Go
// Git library (go-git, or libgit2 via cgo) would reimplement transport
// and credential handling, and workspace clones must behave exactly
// like a clone typed in the user's terminal: same credential helpers,
// same ssh agent, same proxies.
//
// Inspection (repository root, branch, commit, working-tree detection)
// hangs off Manager. CloneArgs only builds argv; the setup
// orchestration decides whether clones run on the host or inside the
// sandbox container.
package gitrepo
