package formula

import (
	"go/scanner"
	"go/token"
	"strings"
)

// scan walks the tokens of src and reports each one with its byte offset.
func scan(src string, fn func(off int, tok token.Token, lit string)) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, []byte(src), nil, scanner.ScanComments)
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			return
		}
		fn(file.Offset(pos), tok, lit)
	}
}

// Substitute replaces every identifier token of src found in repl with its
// replacement text. Everything else, whitespace included, is copied as-is.
// Replacement text is never rescanned.
func Substitute(src string, repl map[string]string) string {
	if len(repl) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	scan(src, func(off int, tok token.Token, lit string) {
		if tok != token.IDENT {
			return
		}
		r, ok := repl[lit]
		if !ok {
			return
		}
		b.WriteString(src[last:off])
		b.WriteString(r)
		last = off + len(lit)
	})
	b.WriteString(src[last:])
	return b.String()
}

// Identifiers returns the distinct identifier tokens of src in order of
// first appearance.
func Identifiers(src string) []string {
	seen := make(map[string]bool)
	var ids []string
	scan(src, func(_ int, tok token.Token, lit string) {
		if tok == token.IDENT && !seen[lit] {
			seen[lit] = true
			ids = append(ids, lit)
		}
	})
	return ids
}

// ValidName reports whether name can be used as a model identifier.
func ValidName(name string) bool {
	return token.IsIdentifier(name)
}
