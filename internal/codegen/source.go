package codegen

import (
	"fmt"
	"strings"
	"unicode"
)

func renderTypeScript(root *Node, declaration bool) []byte {
	var b strings.Builder
	b.WriteString("// " + headerText + "\n")
	if declaration {
		b.WriteString("declare const assets: ")
		writeTSObject(&b, root, 0, true)
		b.WriteString(";\n\nexport = assets;\n")
	} else {
		b.WriteString("export default ")
		writeTSObject(&b, root, 0, false)
		b.WriteString(" as const;\n")
	}
	return []byte(b.String())
}

func writeTSObject(b *strings.Builder, n *Node, depth int, declaration bool) {
	sep := ","
	if declaration {
		sep = ";"
	}
	indent := strings.Repeat("\t", depth+1)

	b.WriteString("{\n")
	for _, key := range n.Keys() {
		child := n.Children[key]
		b.WriteString(indent + tsKey(key) + ": ")
		switch {
		case !child.IsLeaf():
			writeTSObject(b, child, depth+1, declaration)
		case declaration:
			b.WriteString("string")
		default:
			b.WriteString(jsString(child.ID))
		}
		b.WriteString(sep + "\n")
	}
	b.WriteString(strings.Repeat("\t", depth) + "}")
}

func isTSIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		start := unicode.IsLetter(r) || unicode.Is(unicode.Nl, r) || r == '$' || r == '_'
		if i == 0 && !start {
			return false
		}
		part := start || unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc, unicode.Pc)
		if !part {
			return false
		}
	}
	return true
}

func tsKey(key string) string {
	if isTSIdent(key) {
		return key
	}
	return jsString(key)
}

// jsString quotes s as a double-quoted JavaScript string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029':
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

var luauKeywords = map[string]bool{
	"and": true, "break": true, "continue": true, "do": true, "else": true, "elseif": true,
	"end": true, "export": true, "false": true, "for": true, "function": true, "if": true,
	"in": true, "local": true, "nil": true, "not": true, "or": true, "repeat": true,
	"return": true, "then": true, "true": true, "type": true, "until": true, "while": true,
}

func renderLuau(root *Node) []byte {
	var b strings.Builder
	b.WriteString("-- " + headerText + "\n")
	b.WriteString("return ")
	writeLuauTable(&b, root, 0)
	b.WriteString("\n")
	return []byte(b.String())
}

func writeLuauTable(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("\t", depth+1)

	b.WriteString("{\n")
	for _, key := range n.Keys() {
		child := n.Children[key]
		b.WriteString(indent + luauKey(key) + " = ")
		if child.IsLeaf() {
			b.WriteString(luauString(child.ID))
		} else {
			writeLuauTable(b, child, depth+1)
		}
		b.WriteString(",\n")
	}
	b.WriteString(strings.Repeat("\t", depth) + "}")
}

func isLuauIdent(s string) bool {
	if s == "" || luauKeywords[s] {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		alpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !alpha && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func luauKey(key string) string {
	if isLuauIdent(key) {
		return key
	}
	return "[" + luauString(key) + "]"
}

// luauString quotes s for Luau. Bytes outside printable ASCII use decimal
// escapes so the output is plain ASCII.
func luauString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
