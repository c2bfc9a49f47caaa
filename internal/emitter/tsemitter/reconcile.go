package tsemitter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
)

// protectedMembers are never removed during reconciliation.
var protectedMembers = map[string]bool{
	"register":    true,
	"constructor": true,
}

// member is a method declaration found in a class body. start and end
// delimit its text, including leading decorators and comments.
type member struct {
	name       string
	start, end int
}

type edit struct {
	pos, end int
	text     string
}

// ReconcileService updates an existing service source so its methods match
// s: stubs are appended for methods the file lacks, methods the IR no longer
// has are removed, and everything else is kept byte for byte. Missing model
// imports are added after the last import statement.
func ReconcileService(src string, s ir.Service) (string, error) {
	class := naming.ClassName(s.Name, naming.RoleService)
	open, closing, err := findClass(src, class)
	if err != nil {
		return "", err
	}
	members := scanMembers(src, open, closing)

	have := make(map[string]bool, len(members))
	for _, m := range members {
		have[m.name] = true
	}
	want := make(map[string]bool, len(s.Methods))
	for _, m := range s.Methods {
		want[m.Name] = true
	}

	var edits []edit
	var register *member
	for i := range members {
		m := members[i]
		if m.name == "register" && register == nil {
			register = &members[i]
		}
		if protectedMembers[m.name] || want[m.name] {
			continue
		}
		start, end := removalSpan(src, m)
		edits = append(edits, edit{pos: start, end: end})
	}

	var blocks []string
	for _, m := range s.Methods {
		if have[m.Name] || protectedMembers[m.Name] {
			continue
		}
		block, err := serviceMethod(s.Name, m)
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}
	if len(blocks) > 0 {
		if register != nil {
			pos := lineStart(src, firstCode(src, register.start, register.end))
			edits = append(edits, edit{pos: pos, end: pos, text: strings.Join(blocks, "\n") + "\n"})
		} else {
			pos := lineStart(src, closing)
			edits = append(edits, edit{pos: pos, end: pos, text: "\n" + strings.Join(blocks, "\n")})
		}
	}

	if lines := missingImports(src[:open], s.Imports); lines != "" {
		pos := importsEnd(src[:open])
		edits = append(edits, edit{pos: pos, end: pos, text: lines})
	}

	return applyEdits(src, edits), nil
}

func applyEdits(src string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].pos != edits[j].pos {
			return edits[i].pos > edits[j].pos
		}
		// a removal at the same offset goes first so it cannot swallow
		// the inserted text
		return edits[i].end > edits[j].end
	})
	for _, e := range edits {
		src = src[:e.pos] + e.text + src[e.end:]
	}
	return src
}

// findClass returns the offsets of the opening and closing braces of the
// class body.
func findClass(src, class string) (open, closing int, err error) {
	re := regexp.MustCompile(`^class\s+` + regexp.QuoteMeta(class) + `\b`)
	for i := 0; i < len(src); {
		if j := skipNonCode(src, i); j != i {
			i = j
			continue
		}
		if src[i] != 'c' || (i > 0 && isIdentPart(src[i-1])) {
			i++
			continue
		}
		loc := re.FindStringIndex(src[i:])
		if loc == nil {
			i++
			continue
		}
		for k := i + loc[1]; k < len(src); {
			if j := skipNonCode(src, k); j != k {
				k = j
				continue
			}
			if src[k] == '{' {
				end := matchBrace(src, k)
				if end < 0 {
					return 0, 0, fmt.Errorf("class %s is not closed", class)
				}
				return k, end, nil
			}
			k++
		}
		break
	}
	return 0, 0, fmt.Errorf("no class %s found; regenerate with force to replace the file", class)
}

func matchBrace(src string, open int) int {
	return matchPair(src, open, '{', '}')
}

// matchPair returns the offset of the delimiter closing the one at open, or
// -1 when it is never closed.
func matchPair(src string, open int, left, right byte) int {
	depth := 0
	for i := open; i < len(src); {
		if j := skipNonCode(src, i); j != i {
			i = j
			continue
		}
		switch src[i] {
		case left:
			depth++
		case right:
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// scanMembers finds the method declarations directly inside the class body
// between open and closing. A segment whose name is followed by '=' or ':'
// is a property and runs to the next ';' or line break that does not
// continue its expression.
func scanMembers(src string, open, closing int) []member {
	var (
		members   []member
		segStart  = open + 1
		depth     int
		name      string
		lastIdent string
		prop      bool
		sig       bool
	)
	reset := func(at int) {
		segStart, name, lastIdent, prop, sig = at, "", "", false, false
	}

	for i := open + 1; i < closing; {
		if j := skipNonCode(src, i); j != i {
			i = j
			continue
		}
		c := src[i]
		if isIdentStart(c) {
			j := identEnd(src, i, closing)
			if depth == 0 && !prop && !sig {
				lastIdent = src[i:j]
			}
			i = j
			continue
		}
		if depth == 0 {
			switch {
			case c == '@':
				i = skipDecorator(src, i, closing)
				lastIdent = ""
				continue
			case prop && (c == ';' || c == '\n' && !continuesExpression(src, i+1, closing)):
				reset(i + 1)
				i++
				continue
			case sig && c == ':':
				i = skipType(src, i+1, closing)
				if i < closing && src[i] != '{' && src[i] != ';' {
					// a body-less signature
					reset(i)
				}
				continue
			case c == '<' && !prop && !sig && lastIdent != "":
				i = skipTypeParams(src, i, closing)
				continue
			case !sig && (c == '=' || c == ':'):
				prop = true
			}
		}
		switch c {
		case '(':
			if depth == 0 && !prop && name == "" && lastIdent != "" {
				name = lastIdent
			}
			depth++
		case ')':
			depth--
			if depth == 0 && name != "" {
				sig = true
			}
		case '[', '{':
			depth++
		case ']':
			depth--
		case '}':
			depth--
			if depth == 0 && !prop {
				if name != "" && sig {
					members = append(members, member{name: name, start: segStart, end: i + 1})
				}
				reset(i + 1)
			}
		case ';':
			if depth == 0 {
				reset(i + 1)
			}
		case '?', '!', '*':
		default:
			if depth == 0 && !isSpace(c) {
				lastIdent = ""
			}
		}
		i++
	}
	return members
}

// skipDecorator returns the offset just past a decorator starting at the
// '@' at i, including its argument list.
func skipDecorator(src string, i, closing int) int {
	j := i + 1
	for j < closing && (isIdentPart(src[j]) || src[j] == '.') {
		j++
	}
	if j < closing && src[j] == '(' {
		if end := matchPair(src, j, '(', ')'); end >= 0 && end < closing {
			return end + 1
		}
		return closing
	}
	return j
}

// skipTypeParams returns the offset just past the type parameter list
// opened by the '<' at i.
func skipTypeParams(src string, i, closing int) int {
	depth := 0
	for i < closing {
		if j := skipNonCode(src, i); j != i {
			i = j
			continue
		}
		switch {
		case strings.HasPrefix(src[i:], "=>"):
			i += 2
			continue
		case src[i] == '<':
			depth++
		case src[i] == '>':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return closing
}

// typeOperators may follow a complete type without ending it.
var typeOperators = map[string]bool{
	"is": true, "extends": true, "keyof": true, "typeof": true,
	"readonly": true, "infer": true, "unique": true, "asserts": true, "new": true,
}

// skipType scans a return type annotation starting at i and returns the
// offset of the body brace, the terminating ';', or the start of the next
// member when the annotation ends a body-less signature.
func skipType(src string, i, closing int) int {
	depth := 0
	expect := true
	for i < closing {
		if j := skipNonCode(src, i); j != i {
			if q := src[i]; q == '"' || q == '\'' || q == '`' {
				expect = false
			}
			i = j
			continue
		}
		c := src[i]
		if isIdentStart(c) {
			j := identEnd(src, i, closing)
			word := src[i:j]
			if depth == 0 && !expect && !typeOperators[word] {
				return i
			}
			expect = typeOperators[word]
			i = j
			continue
		}
		if strings.HasPrefix(src[i:], "=>") {
			expect = true
			i += 2
			continue
		}
		switch c {
		case '<', '(', '[':
			depth++
			expect = true
		case '>', ')', ']':
			depth--
			expect = false
		case '{':
			if depth == 0 && !expect {
				return i
			}
			depth++
			expect = true
		case '}':
			if depth == 0 {
				return i
			}
			depth--
			expect = false
		case ';':
			if depth == 0 {
				return i
			}
			expect = true
		case '|', '&', ',', ':', '?', '.':
			expect = true
		default:
			if c >= '0' && c <= '9' {
				expect = false
			}
		}
		i++
	}
	return i
}

// continuesExpression reports whether the first code after a line break at
// i carries on the expression before it.
func continuesExpression(src string, i, closing int) bool {
	for i < closing {
		if isSpace(src[i]) {
			i++
			continue
		}
		if j := skipNonCode(src, i); j != i && src[i] == '/' {
			i = j
			continue
		}
		return strings.IndexByte(".?:+-*/%&|^<>=,([", src[i]) >= 0
	}
	return false
}

func identEnd(src string, i, limit int) int {
	for i < limit && isIdentPart(src[i]) {
		i++
	}
	return i
}

// removalSpan widens a member to whole lines and drops one adjacent blank
// line so removal leaves the surrounding layout intact.
func removalSpan(src string, m member) (start, end int) {
	start = lineStart(src, firstCode(src, m.start, m.end))
	if start < m.start {
		start = firstCode(src, m.start, m.end)
	}
	end = m.end
	k := end
	for k < len(src) && (src[k] == ' ' || src[k] == '\t' || src[k] == '\r') {
		k++
	}
	if k < len(src) && src[k] == '\n' {
		end = k + 1
	}
	switch {
	case start >= 2 && src[start-1] == '\n' && src[start-2] == '\n':
		start--
	case end < len(src) && src[end] == '\n':
		end++
	}
	return start, end
}

func firstCode(src string, from, to int) int {
	for from < to && isSpace(src[from]) {
		from++
	}
	return from
}

func lineStart(src string, i int) int {
	return strings.LastIndexByte(src[:i], '\n') + 1
}

var importStmt = regexp.MustCompile(`(?ms)^import\b.*?;[ \t]*\n?`)

func importsEnd(header string) int {
	locs := importStmt.FindAllStringIndex(header, -1)
	if len(locs) == 0 {
		return 0
	}
	return locs[len(locs)-1][1]
}

func missingImports(header string, imports []ir.Import) string {
	var b strings.Builder
	for _, imp := range imports {
		re := regexp.MustCompile(`(?s)\bimport\b[^;]*\b` + regexp.QuoteMeta(imp.Name) + `\b[^;]*;`)
		if re.MatchString(header) {
			continue
		}
		fmt.Fprintf(&b, "import type { %s } from \"%s.%s\";\n", imp.Name, imp.Path, ext)
	}
	return b.String()
}

// skipNonCode returns the offset just past a comment or string literal
// starting at i, or i when there is none. Template literal interpolations
// are treated as part of the literal.
func skipNonCode(src string, i int) int {
	switch {
	case strings.HasPrefix(src[i:], "//"):
		if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
			return i + j
		}
		return len(src)
	case strings.HasPrefix(src[i:], "/*"):
		if j := strings.Index(src[i+2:], "*/"); j >= 0 {
			return i + 2 + j + 2
		}
		return len(src)
	case src[i] == '"' || src[i] == '\'' || src[i] == '`':
		q := src[i]
		for j := i + 1; j < len(src); j++ {
			switch src[j] {
			case '\\':
				j++
			case q:
				return j + 1
			}
		}
		return len(src)
	}
	return i
}

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' || c == '$'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
