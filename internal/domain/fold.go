package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldText remove acentos, converte para minúsculas e colapsa espaços internos.
// "Data  Crédito" -> "data credito".
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "\u00a0", " ")
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}
