package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// rule is one compiled ignore pattern.
type rule struct {
	pattern string
	source  string
	negated bool
	dirOnly bool
	exact   *regexp.Regexp // the pattern itself
	under   *regexp.Regexp // anything beneath a matched directory
}

// compileRule turns one gitignore-syntax pattern into a rule.
// Patterns without a slash match at any depth; a slash anywhere anchors the
// pattern to the scan root; a trailing slash restricts it to directories.
func compileRule(pattern, source string) (rule, error) {
	r := rule{pattern: pattern, source: source}
	p := pattern

	if strings.HasPrefix(p, "!") {
		r.negated = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	anchored := false
	if strings.HasPrefix(p, "/") {
		anchored = true
		p = strings.TrimPrefix(p, "/")
	}
	if strings.Contains(p, "/") {
		anchored = true
	}
	if p == "" {
		return rule{}, fmt.Errorf("empty pattern")
	}

	body, err := translateBody(p)
	if err != nil {
		return rule{}, err
	}
	prefix := ""
	if !anchored {
		prefix = `(?:.*/)?`
	}
	exact, err := regexp.Compile(`^` + prefix + body + `$`)
	if err != nil {
		return rule{}, err
	}
	under, err := regexp.Compile(`^` + prefix + body + `/.*$`)
	if err != nil {
		return rule{}, err
	}
	r.exact = exact
	r.under = under
	return r, nil
}

// match reports whether the rule applies to rel. A rule that names a
// directory also covers everything beneath it; for the exact path the caller
// says whether it is a directory.
func (r rule) match(rel string, isDir bool) bool {
	if r.exact.MatchString(rel) {
		return !r.dirOnly || isDir
	}
	return r.under.MatchString(rel)
}

// translateBody converts the slash-separated glob body into a regexp.
// `**` crosses directory separators: leading it matches at every depth,
// trailing it swallows a whole subtree, in the middle it spans zero or more
// directories.
func translateBody(p string) (string, error) {
	segs := strings.Split(p, "/")
	var b strings.Builder
	for i, seg := range segs {
		last := i == len(segs)-1
		if seg == "**" {
			if last {
				b.WriteString(`.+`)
			} else {
				b.WriteString(`(?:[^/]+/)*`)
			}
			continue
		}
		frag, err := translateSegment(seg)
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
		if !last {
			b.WriteString("/")
		}
	}
	return b.String(), nil
}

// translateSegment converts glob syntax within a single path segment.
// `*` and `?` never cross a separator.
func translateSegment(seg string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch c {
		case '*':
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		case '[':
			j := i + 1
			neg := false
			if j < len(seg) && (seg[j] == '!' || seg[j] == '^') {
				neg = true
				j++
			}
			start := j
			if j < len(seg) && seg[j] == ']' {
				j++ // literal ] as first class character
			}
			for j < len(seg) && seg[j] != ']' {
				j++
			}
			if j >= len(seg) || j == start {
				return "", fmt.Errorf("unterminated character class in %q", seg)
			}
			b.WriteString("[")
			if neg {
				b.WriteString("^")
			}
			b.WriteString(escapeClass(seg[start:j]))
			b.WriteString("]")
			i = j
		case '\\':
			if i+1 < len(seg) {
				b.WriteString(regexp.QuoteMeta(string(seg[i+1])))
				i++
			} else {
				b.WriteString(`\\`)
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String(), nil
}

// escapeClass keeps ranges like a-z intact while defusing regexp
// metacharacters inside a character class.
func escapeClass(class string) string {
	var b strings.Builder
	for i := 0; i < len(class); i++ {
		c := class[i]
		switch c {
		case '\\', '^', ']', '[':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
