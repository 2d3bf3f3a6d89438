// Package gitignore compiles ignore-file text into ordered rule lists and
// evaluates relative paths against them.
//
// It implements the gitignore pattern syntax as documented at:
// https://git-scm.com/docs/gitignore
//
// Features:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **, [a-z], [!0-9])
//   - Anchored patterns (/build, docs/*.md)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Three-way verdicts (Ignored, ReIncluded, NoMatch), last rule wins
//
// A Matcher describes exactly one ignore file; paths passed to it are
// relative to the directory holding that file. Combining the files of a
// directory tree is the job of the registry and resolver packages.
//
// Usage:
//
//	m := gitignore.Compile("*.log\n!important.log\n/build/\n")
//
//	switch m.Evaluate("logs/error.log", false) {
//	case gitignore.Ignored:
//	    // excluded
//	case gitignore.ReIncluded:
//	    // explicitly re-included
//	case gitignore.NoMatch:
//	    // no opinion, ask the parent directory
//	}
package gitignore
