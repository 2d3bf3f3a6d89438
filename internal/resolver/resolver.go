// Package resolver decides whether a path under the watch root is ignored by
// the hierarchy of ignore files held in the registry.
package resolver

import (
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/syncignore/internal/gitignore"
	"github.com/Aman-CERP/syncignore/internal/registry"
)

// DefaultCacheSize is the default number of cached decisions.
const DefaultCacheSize = 4096

// RuleSource supplies per-directory rule sets. *registry.Registry implements it.
type RuleSource interface {
	Root() string
	Snapshot(relDir string) registry.DirectoryRuleSet
	Generation() uint64
}

// Options configures an Engine.
type Options struct {
	// CacheSize is the number of decisions kept in the LRU cache.
	// Zero disables caching.
	CacheSize int
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{CacheSize: DefaultCacheSize}
}

// Decision is the outcome for one path together with what decided it.
type Decision struct {
	// Path is the queried path relative to the watch root.
	Path  string
	IsDir bool

	Ignored bool

	// Verdict is the verdict of the deciding directory, NoMatch when no
	// rule anywhere matched.
	Verdict gitignore.Verdict

	// Dir is the directory whose rules decided, relative to the root.
	Dir string

	// File is the deciding ignore file, relative to the root.
	File string

	// Rule is the deciding rule.
	Rule gitignore.Rule

	// ExcludedAncestor is set when the path is ignored because an ancestor
	// directory is; the other fields then describe that ancestor's decision.
	ExcludedAncestor string
}

type cacheKey struct {
	path  string
	isDir bool
}

type cacheEntry struct {
	generation uint64
	decision   Decision
}

// Engine answers ignore queries against a RuleSource.
// It is safe for concurrent use.
type Engine struct {
	src   RuleSource
	root  string
	cache *lru.Cache[cacheKey, cacheEntry]
}

// New creates an engine over src.
func New(src RuleSource, opts Options) (*Engine, error) {
	e := &Engine{src: src, root: src.Root()}
	if opts.CacheSize > 0 {
		cache, err := lru.New[cacheKey, cacheEntry](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// Root returns the watch root the engine resolves against.
func (e *Engine) Root() string {
	return e.root
}

// IsIgnored reports whether absPath is ignored. The watch root itself is
// never ignored; paths outside it fail with OutOfScopePath.
func (e *Engine) IsIgnored(absPath string, isDir bool) (bool, error) {
	d, err := e.Decide(absPath, isDir)
	if err != nil {
		return false, err
	}
	return d.Ignored, nil
}

// Decide is IsIgnored with the deciding directory, file and rule.
//
// A path below an ignored directory is ignored. Otherwise the walk starts at
// the path's own directory and moves up to the root; the first directory
// whose rules produce a verdict decides.
func (e *Engine) Decide(absPath string, isDir bool) (Decision, error) {
	rel, err := registry.RelPath(e.root, absPath)
	if err != nil {
		return Decision{}, err
	}
	if rel == "" {
		return Decision{IsDir: true}, nil
	}
	return e.decide(rel, isDir, e.src.Generation()), nil
}

func (e *Engine) decide(rel string, isDir bool, gen uint64) Decision {
	key := cacheKey{path: rel, isDir: isDir}
	if e.cache != nil {
		if entry, ok := e.cache.Get(key); ok && entry.generation == gen {
			return entry.decision
		}
	}

	d := e.evaluate(rel, isDir, gen)

	if e.cache != nil {
		e.cache.Add(key, cacheEntry{generation: gen, decision: d})
	}
	return d
}

func (e *Engine) evaluate(rel string, isDir bool, gen uint64) Decision {
	// The parent's decision already accounts for its own ancestors.
	if parent := parentDir(rel); parent != "" {
		if pd := e.decide(parent, true, gen); pd.Ignored {
			if pd.ExcludedAncestor == "" {
				pd.ExcludedAncestor = parent
			}
			pd.Path = rel
			pd.IsDir = isDir
			return pd
		}
	}

	dir := parentDir(rel)
	for {
		set := e.src.Snapshot(dir)
		if !set.Empty() {
			m := set.Evaluate(relativeTo(rel, dir), isDir)
			if m.Verdict != gitignore.NoMatch {
				return Decision{
					Path:    rel,
					IsDir:   isDir,
					Ignored: m.Verdict == gitignore.Ignored,
					Verdict: m.Verdict,
					Dir:     dir,
					File:    m.File.RelPath(),
					Rule:    m.Rule,
				}
			}
		}
		if dir == "" {
			break
		}
		dir = parentDir(dir)
	}

	return Decision{Path: rel, IsDir: isDir}
}

// parentDir returns the parent of a root-relative path, "" for top-level entries.
func parentDir(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	return dir
}

// relativeTo strips dir from the front of rel. dir must be an ancestor of rel.
func relativeTo(rel, dir string) string {
	if dir == "" {
		return rel
	}
	return strings.TrimPrefix(rel, dir+"/")
}
