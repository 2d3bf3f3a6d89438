package registry

import (
	"path"
	"slices"
	"strings"

	"github.com/Aman-CERP/syncignore/internal/gitignore"
)

// IgnoreFile is one ignore file bound to its compiled rules.
// Values handed out by the registry are never mutated.
type IgnoreFile struct {
	// Dir is the containing directory relative to the watch root ("" for the root).
	Dir string

	// Name is the file name, e.g. ".gitignore".
	Name string

	// Matcher holds the compiled rules. It is empty when the content could
	// not be read.
	Matcher *gitignore.Matcher

	// ParseErr is the error that made the rule set empty, if any.
	ParseErr error
}

// RelPath returns the file's path relative to the watch root.
func (f *IgnoreFile) RelPath() string {
	return path.Join(f.Dir, f.Name)
}

// Match describes which rule decided a verdict.
type Match struct {
	Verdict gitignore.Verdict
	File    *IgnoreFile    // nil for NoMatch
	Rule    gitignore.Rule // zero for NoMatch
}

// DirectoryRuleSet is the immutable set of ignore files declared directly in
// one directory, ordered by file name. The zero value is an empty set.
type DirectoryRuleSet struct {
	dir   string
	files []*IgnoreFile
}

// Dir returns the directory the set belongs to, relative to the watch root.
func (s DirectoryRuleSet) Dir() string { return s.dir }

// Len returns the number of ignore files in the set.
func (s DirectoryRuleSet) Len() int { return len(s.files) }

// Empty reports whether the set has no ignore files.
func (s DirectoryRuleSet) Empty() bool { return len(s.files) == 0 }

// Files returns the ignore files in file-name order.
func (s DirectoryRuleSet) Files() []*IgnoreFile {
	return slices.Clone(s.files)
}

// File returns the ignore file with the given name.
func (s DirectoryRuleSet) File(name string) (*IgnoreFile, bool) {
	i, found := s.search(name)
	if !found {
		return nil, false
	}
	return s.files[i], true
}

// Evaluate applies the rules of every file in the set to rel, a path
// relative to the set's directory. Files are consulted in name order and
// the last matching rule across all of them wins. Ancestors of rel are not
// consulted.
func (s DirectoryRuleSet) Evaluate(rel string, isDir bool) Match {
	var m Match
	for _, f := range s.files {
		v, idx := f.Matcher.EvaluateDirect(rel, isDir)
		if v == gitignore.NoMatch {
			continue
		}
		rule, _ := f.Matcher.Rule(idx)
		m = Match{Verdict: v, File: f, Rule: rule}
	}
	return m
}

func (s DirectoryRuleSet) search(name string) (int, bool) {
	return slices.BinarySearchFunc(s.files, name, func(f *IgnoreFile, n string) int {
		return strings.Compare(f.Name, n)
	})
}

// with returns a copy of the set with f inserted or replaced.
func (s DirectoryRuleSet) with(f *IgnoreFile) DirectoryRuleSet {
	i, found := s.search(f.Name)
	files := make([]*IgnoreFile, 0, len(s.files)+1)
	files = append(files, s.files[:i]...)
	files = append(files, f)
	if found {
		files = append(files, s.files[i+1:]...)
	} else {
		files = append(files, s.files[i:]...)
	}
	return DirectoryRuleSet{dir: f.Dir, files: files}
}

// without returns a copy of the set with the named file removed.
func (s DirectoryRuleSet) without(name string) (DirectoryRuleSet, bool) {
	i, found := s.search(name)
	if !found {
		return s, false
	}
	files := make([]*IgnoreFile, 0, len(s.files)-1)
	files = append(files, s.files[:i]...)
	files = append(files, s.files[i+1:]...)
	return DirectoryRuleSet{dir: s.dir, files: files}, true
}
