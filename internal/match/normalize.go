package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ligatures  = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss")
	separators = strings.NewReplacer("-", " ", "'", " ", "’", " ", "‘", " ", "_", " ", " ", " ")
)

// Normalize lowercases, trims and strips diacritics from a free-text location or
// description so that "Île-de-France" and "ile de france" compare equal.
func Normalize(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return ""
	}
	lower = ligatures.Replace(lower)
	if folded, _, err := transform.String(diacriticFolder(), lower); err == nil {
		lower = folded
	}
	lower = separators.Replace(lower)
	return strings.Join(strings.Fields(lower), " ")
}

// diacriticFolder is built per call: transform chains keep internal state and
// cannot be shared between goroutines.
func diacriticFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// ContainsWord reports whether phrase starts a word of the normalized text.
// "national" therefore matches "programme nationale" but not "international".
func ContainsWord(text, phrase string) bool {
	if text == "" || phrase == "" {
		return false
	}
	return strings.Contains(" "+text, " "+phrase)
}

// removeWords drops every whole-word occurrence of name from text.
func removeWords(text, name string) string {
	if text == "" || name == "" {
		return text
	}
	padded := " " + text + " "
	needle := " " + name + " "
	for strings.Contains(padded, needle) {
		padded = strings.ReplaceAll(padded, needle, " ")
	}
	return strings.Join(strings.Fields(padded), " ")
}

var qualifierPrefixes = []string{"region ", "departement ", "dept ", "dep "}
var articlePrefixes = []string{"de la ", "de l ", "du ", "des ", "de ", "d "}

// stripQualifier removes a leading administrative qualifier such as "Région" or
// "Département de la". It returns the input unchanged when none is present.
func stripQualifier(normalized string) string {
	for _, prefix := range qualifierPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			rest := strings.TrimPrefix(normalized, prefix)
			for _, article := range articlePrefixes {
				if strings.HasPrefix(rest, article) {
					return strings.TrimPrefix(rest, article)
				}
			}
			return rest
		}
	}
	return normalized
}
