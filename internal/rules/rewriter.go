// Package rules rewrites normalized transcripts before intent matching, so
// common mis-hearings ("you tube", "wiki pedia") reach the right intent.
//
// A rules file holds one rule per line; blank lines and lines starting with
// '#' are ignored. Three syntaxes are built in:
//
//	alias youtube = you tube, u tube     every variant becomes the keyword
//	mosam => mausam                      literal, case-insensitive
//	s/\bwiki\s+pedia\b/wikipedia/g       sed-style regular expression
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Rule rewrites text, reporting whether anything changed.
type Rule interface {
	Rewrite(text string) (string, bool)
}

// Syntax recognizes and compiles one rule line format.
type Syntax interface {
	Accepts(line string) bool
	Compile(line string) (Rule, error)
}

// Rewriter applies rules in file order until the text stops changing.
type Rewriter struct {
	rules []Rule
	limit int
}

// New builds a rewriter from already compiled rules.
func New(limit int, rules ...Rule) *Rewriter {
	if limit <= 0 {
		limit = 30
	}
	return &Rewriter{rules: rules, limit: limit}
}

// Load reads and compiles a rules file. A blank path or a missing file yields
// a rewriter that leaves text untouched. Extra syntaxes are tried before the
// built-in ones.
func Load(fs afero.Fs, path string, limit int, extra ...Syntax) (*Rewriter, error) {
	if strings.TrimSpace(path) == "" {
		return New(limit), nil
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(limit), nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	syntaxes := append(append([]Syntax{}, extra...), DefaultSyntaxes()...)
	compiled, err := Parse(string(contents), syntaxes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return New(limit, compiled...), nil
}

// Rewrite returns text after applying every rule to a fixed point, bounded by
// the iteration limit.
func (r *Rewriter) Rewrite(text string) string {
	if r == nil || len(r.rules) == 0 {
		return text
	}

	result := text
	for i := 0; i < r.limit; i++ {
		changed := false
		for _, rule := range r.rules {
			if next, ok := rule.Rewrite(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return strings.Join(strings.Fields(result), " ")
}

// Len reports how many rules are loaded.
func (r *Rewriter) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Parse compiles rules file contents with the given syntaxes, first accepting
// syntax wins.
func Parse(contents string, syntaxes []Syntax) ([]Rule, error) {
	lines := strings.Split(contents, "\n")
	compiled := make([]Rule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var syntax Syntax
		for _, candidate := range syntaxes {
			if candidate.Accepts(line) {
				syntax = candidate
				break
			}
		}
		if syntax == nil {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}

		rule, err := syntax.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		compiled = append(compiled, rule)
	}

	return compiled, nil
}

// DefaultSyntaxes returns the alias, sed and literal syntaxes in that order.
func DefaultSyntaxes() []Syntax {
	return []Syntax{AliasSyntax{}, SedSyntax{}, LiteralSyntax{}}
}

// AliasSyntax parses "alias keyword = variant, variant".
type AliasSyntax struct{}

func (AliasSyntax) Accepts(line string) bool {
	return strings.HasPrefix(line, "alias ") && strings.Contains(line, "=") && !strings.Contains(line, "=>")
}

func (AliasSyntax) Compile(line string) (Rule, error) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "alias "))
	keyword, variants, _ := strings.Cut(body, "=")
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("alias keyword cannot be empty")
	}

	quoted := make([]string, 0, 4)
	for _, variant := range strings.Split(variants, ",") {
		variant = strings.TrimSpace(variant)
		if variant == "" || strings.EqualFold(variant, keyword) {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(variant))
	}
	if len(quoted) == 0 {
		return nil, fmt.Errorf("alias %q has no variants", keyword)
	}

	re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("invalid alias variants: %w", err)
	}
	return replaceRule{re: re, replacement: keyword, global: true}, nil
}

// LiteralSyntax parses "from => to".
type LiteralSyntax struct{}

func (LiteralSyntax) Accepts(line string) bool {
	return strings.Contains(line, "=>")
}

func (LiteralSyntax) Compile(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid literal source: %w", err)
	}
	return replaceRule{re: re, replacement: regexpEscapeReplacement(strings.TrimSpace(to)), global: true}, nil
}

// SedSyntax parses "s<d>pattern<d>replacement<d>flags" with any
// non-alphanumeric delimiter. Matching is case-insensitive unless the pattern
// says otherwise; without the g flag only the first match is replaced.
type SedSyntax struct{}

func (SedSyntax) Accepts(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

func (SedSyntax) Compile(line string) (Rule, error) {
	delim := line[1]

	pattern, next, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	replacement, next, err := readDelimited(line, next, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement: %w", err)
	}

	prefix := "i"
	global := false
	for _, flag := range strings.TrimSpace(line[next:]) {
		switch flag {
		case 'g':
			global = true
		case 'i':
		case 'm', 's':
			prefix += string(flag)
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + prefix + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return replaceRule{re: re, replacement: replacement, global: global}, nil
}

type replaceRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r replaceRule) Rewrite(text string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(text, r.replacement)
		return output, output != text
	}

	loc := r.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, text, loc)
	output := text[:loc[0]] + string(expanded) + text[loc[1]:]
	return output, output != text
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case escaped:
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
		case char == '\\':
			escaped = true
		case char == delim:
			return builder.String(), index + 1, nil
		default:
			builder.WriteByte(char)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func regexpEscapeReplacement(text string) string {
	return strings.ReplaceAll(text, "$", "$$")
}

func isWordOrSpace(char byte) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == ' ' || char == '\t'
}
