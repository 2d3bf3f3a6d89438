package gitignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
)

// DefaultMaxFileSize bounds how much of an ignore file is read.
const DefaultMaxFileSize int64 = 1 << 20

// Content errors wrapped by ParseFile. Retrying cannot fix these.
var (
	ErrBinaryContent = errors.New("binary content")
	ErrFileTooLarge  = errors.New("file too large")
)

// Verdict is the outcome of evaluating one path against a rule list.
type Verdict int

const (
	// NoMatch means no rule matched the path.
	NoMatch Verdict = iota
	// Ignored means the last matching rule excludes the path.
	Ignored
	// ReIncluded means the last matching rule is a negation.
	ReIncluded
)

// String returns a human-readable representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case NoMatch:
		return "no-match"
	case Ignored:
		return "ignored"
	case ReIncluded:
		return "re-included"
	default:
		return "unknown"
	}
}

// Rule is one compiled, non-comment, non-blank line of an ignore file.
type Rule struct {
	Pattern  string // pattern body with the !, leading / and trailing / removed
	Raw      string // line as written in the file
	Line     int    // 1-based line number, 0 for rules added programmatically
	Negation bool   // starts with !
	DirOnly  bool   // ends with /
	Anchored bool   // starts with / or contains an inner /

	regex *regexp.Regexp
}

// String returns the rule as written.
func (r Rule) String() string {
	return r.Raw
}

// Matcher holds the ordered rules of one ignore file.
// It is safe for concurrent use; once handed to the registry it is never
// mutated again.
type Matcher struct {
	rules []Rule
	mu    sync.RWMutex
}

// New creates a new empty Matcher.
func New() *Matcher {
	return &Matcher{
		rules: make([]Rule, 0),
	}
}

// Compile parses ignore-file content into a Matcher.
func Compile(content string) *Matcher {
	m := New()
	content = strings.TrimPrefix(content, "\uFEFF")

	lineNo := 0
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 4096), len(content)+1)
	for sc.Scan() {
		lineNo++
		if r, ok := parseLine(sc.Text(), lineNo); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// ParseFile reads and compiles the ignore file at path.
// Files larger than maxSize (DefaultMaxFileSize when <= 0), files holding a
// NUL byte and unreadable files fail with a ParseError; callers treat those
// as an empty rule set. Bytes that are not valid UTF-8 match themselves.
func ParseFile(path string, maxSize int64) (*Matcher, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, syerrors.ParseError(path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, syerrors.ParseError(path, err)
	}
	if int64(len(data)) > maxSize {
		return nil, syerrors.ParseError(path, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize))
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, syerrors.ParseError(path, ErrBinaryContent)
	}

	return Compile(string(data)), nil
}

// AddPattern compiles one pattern line and appends it to the matcher.
// Blank lines and comments are skipped.
func (m *Matcher) AddPattern(pattern string) {
	r, ok := parseLine(pattern, 0)
	if !ok {
		return
	}

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// Rules returns a copy of the compiled rules in file order.
func (m *Matcher) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether path is ignored by this rule list alone.
func (m *Matcher) Match(path string, isDir bool) bool {
	return m.Evaluate(path, isDir) == Ignored
}

// Evaluate returns the verdict for path, relative to the ignore file's
// directory. If an ancestor directory of path is excluded by this rule list,
// the path is Ignored regardless of later negations.
func (m *Matcher) Evaluate(path string, isDir bool) Verdict {
	rel := Normalize(path)
	if rel == "" {
		return NoMatch
	}

	for i := 0; i < len(rel); i++ {
		if rel[i] != '/' {
			continue
		}
		if v, _ := m.EvaluateDirect(rel[:i], true); v == Ignored {
			return Ignored
		}
	}

	v, _ := m.EvaluateDirect(rel, isDir)
	return v
}

// EvaluateDirect returns the verdict of the last rule matching path itself,
// without looking at the path's ancestors, and that rule's index (-1 when
// nothing matched).
func (m *Matcher) EvaluateDirect(path string, isDir bool) (Verdict, int) {
	rel := Normalize(path)
	if rel == "" {
		return NoMatch, -1
	}
	rel = literalRunes(rel)
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	verdict, index := NoMatch, -1
	for i := range m.rules {
		r := &m.rules[i]
		if r.DirOnly && !isDir {
			continue
		}
		candidate := base
		if r.Anchored {
			candidate = rel
		}
		if !r.regex.MatchString(candidate) {
			continue
		}
		index = i
		if r.Negation {
			verdict = ReIncluded
		} else {
			verdict = Ignored
		}
	}
	return verdict, index
}

// Rule returns the rule at index i.
func (m *Matcher) Rule(i int) (Rule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.rules) {
		return Rule{}, false
	}
	return m.rules[i], true
}

// Normalize converts path to the slash-separated, cleaned, relative form
// the matcher works on. The empty string stands for the directory itself.
func Normalize(p string) string {
	p = filepath.ToSlash(p)
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	return p
}

// parseLine compiles one line. ok is false for blank lines and comments.
func parseLine(line string, lineNo int) (Rule, bool) {
	line = strings.TrimSuffix(line, "\r")
	raw := line

	// Trailing spaces are dropped unless escaped with a backslash.
	trimmed := strings.TrimRight(line, " \t")
	if trimmed != line && strings.HasSuffix(trimmed, `\`) && !strings.HasSuffix(trimmed, `\\`) {
		trimmed += " "
	}
	pattern := trimmed

	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return Rule{}, false
	}

	r := Rule{Raw: strings.TrimRight(raw, " \t"), Line: lineNo}

	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.Negation = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") && !strings.HasSuffix(pattern, `\/`) {
		r.DirOnly = true
		pattern = strings.TrimRight(pattern, "/")
	}

	if strings.HasPrefix(pattern, "/") {
		r.Anchored = true
		pattern = strings.TrimLeft(pattern, "/")
	}

	// A slash anywhere else also anchors: "doc/frotz" means "/doc/frotz".
	if strings.Contains(pattern, "/") {
		r.Anchored = true
	}

	if pattern == "" {
		return Rule{}, false
	}

	re, err := regexp.Compile("^" + patternToRegex(pattern) + "$")
	if err != nil {
		// Unreachable for generated expressions; treat as a literal.
		re = regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}

	r.Pattern = pattern
	r.regex = re
	return r, true
}

// patternToRegex converts a gitignore glob to a regex body.
func patternToRegex(pattern string) string {
	var result strings.Builder
	p := []rune(literalRunes(pattern))

	for i := 0; i < len(p); {
		c := p[i]

		switch c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				atStart := i == 0 || p[i-1] == '/'
				atEnd := i+2 == len(p) || p[i+2] == '/'
				if atStart && atEnd {
					if i+2 == len(p) {
						// trailing ** matches everything below
						result.WriteString(".*")
						i += 2
					} else {
						// **/ matches zero or more directories
						result.WriteString("(?:.*/)?")
						i += 3
					}
					continue
				}
				// ** inside a segment behaves like *
				result.WriteString("[^/]*")
				i += 2
				continue
			}
			result.WriteString("[^/]*")
			i++

		case '?':
			result.WriteString("[^/]")
			i++

		case '[':
			class, n, ok := bracketToRegex(p[i:])
			if !ok {
				result.WriteString(regexp.QuoteMeta("["))
				i++
				continue
			}
			result.WriteString(class)
			i += n

		case '\\':
			if i+1 < len(p) {
				result.WriteString(regexp.QuoteMeta(string(p[i+1])))
				i += 2
			} else {
				result.WriteString(regexp.QuoteMeta(`\`))
				i++
			}

		default:
			result.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return result.String()
}

// invalidByteBase is where bytes outside valid UTF-8 are mapped, one rune per
// byte, in the last private-use plane.
const invalidByteBase rune = 0x10FF00

// literalRunes rewrites s so every byte of an invalid UTF-8 sequence becomes a
// distinct rune. Patterns and paths in legacy encodings then compare byte for
// byte instead of collapsing to U+FFFD.
func literalRunes(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = invalidByteBase + rune(s[i])
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

// posixClasses are the bracket expressions git's wildmatch understands.
var posixClasses = map[string]bool{
	"alnum": true, "alpha": true, "blank": true, "cntrl": true,
	"digit": true, "graph": true, "lower": true, "print": true,
	"punct": true, "space": true, "upper": true, "xdigit": true,
}

// matchNothing is an empty class. An unknown [:name:] makes the whole
// pattern unmatchable, as in git.
const matchNothing = `[^\x00-\x{10FFFF}]`

// posixClass reads "[:name:]" at p[0]. It returns the regex class, the number
// of runes consumed and false when p does not start one.
func posixClass(p []rune) (string, int, bool) {
	if len(p) < 2 || p[0] != '[' || p[1] != ':' {
		return "", 0, false
	}
	for j := 2; j+1 < len(p); j++ {
		if p[j] == ':' && p[j+1] == ']' {
			name := string(p[2:j])
			if !posixClasses[name] {
				return "", j + 2, true
			}
			return "[:" + name + ":]", j + 2, true
		}
	}
	return "", 0, false
}

// bracketToRegex converts a character class starting at p[0] == '['.
// It returns the regex class, the number of runes consumed and whether the
// class was terminated.
func bracketToRegex(p []rune) (string, int, bool) {
	var sb strings.Builder
	sb.WriteString("[")

	i := 1
	negated := false
	if i < len(p) && (p[i] == '!' || p[i] == '^') {
		negated = true
		sb.WriteString("^")
		i++
	}

	first := true
	for i < len(p) {
		c := p[i]
		if c == ']' && !first {
			if negated {
				// a class never matches the separator
				sb.WriteString("/")
			}
			sb.WriteString("]")
			return sb.String(), i + 1, true
		}
		first = false

		if c == '[' {
			if class, n, ok := posixClass(p[i:]); ok {
				if class == "" {
					return matchNothing, closeBracket(p, i+n), true
				}
				sb.WriteString(class)
				i += n
				continue
			}
		}

		switch {
		case c == '\\' && i+1 < len(p):
			sb.WriteString(regexp.QuoteMeta(string(p[i+1])))
			i += 2
			continue
		case c == '-':
			sb.WriteRune('-')
		case c == ']' || c == '[' || c == '^' || c == '\\':
			sb.WriteString(`\` + string(c))
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
		i++
	}

	return "", 0, false
}

// closeBracket returns the number of runes up to and including the ']' that
// ends the class, searching from i, or len(p) when there is none.
func closeBracket(p []rune, i int) int {
	for ; i < len(p); i++ {
		if p[i] == ']' {
			return i + 1
		}
	}
	return len(p)
}
