// Package textutils has small helpers for laying out generated text.
package textutils

import (
	"bytes"
	"slices"
	"strings"
)

var asciiSpace = [256]bool{'\t': true, '\n': true, '\v': true, '\f': true, '\r': true, ' ': true}

// IndentString prepends indent nIndent times to each line beginning in s,
// except for empty lines.
func IndentString(s string, indent string, nIndent int) string {
	return prefixLines(s, strings.Repeat(indent, nIndent), false)
}

// CommentString turns s into a block of Go line comments. Blank lines
// become bare "//" lines, trailing blank lines are dropped.
func CommentString(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool { return r < 256 && asciiSpace[r] })
	if s == "" {
		return ""
	}
	return prefixLines(s+"\n", "// ", true)
}

func prefixLines(s string, prefix string, keepEmpty bool) string {
	b := []byte(s)

	var res strings.Builder
	{
		nBOL := bytes.Count(b, []byte{'\n'}) + 1
		res.Grow(len(s) + nBOL*len(prefix)) // upper bound, empty lines may be skipped
	}

	start := 0
	for start < len(b) {
		hitNewline := false
		end := bytes.IndexByte(b[start:], '\n')
		if end == -1 {
			end = len(b)
		} else {
			hitNewline = true
			end += start + 1 // adjust to offset and include "\n"
		}
		line := b[start:end]
		if slices.ContainsFunc(line, func(b byte) bool { return !asciiSpace[b] }) {
			res.WriteString(prefix)
			res.Write(line)
		} else if keepEmpty {
			res.WriteString(strings.TrimRight(prefix, " "))
			res.WriteByte('\n')
		} else if hitNewline {
			res.WriteByte('\n')
		}
		start = end
	}

	return res.String()
}

// ExportedName turns a C identifier into an exported Go identifier by
// dropping underscores and upper-casing the letter after each of them:
// "slang_createGlobalSession" becomes "SlangCreateGlobalSession" and
// "slang_IGlobalSession" becomes "SlangIGlobalSession". Existing capitals
// are kept, unlike strcase.ToCamel which folds runs of them.
func ExportedName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upNext := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upNext = true
			continue
		}
		if upNext && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if upNext && c >= '0' && c <= '9' && b.Len() == 0 {
			b.WriteByte('X')
		}
		upNext = false
		b.WriteByte(c)
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
