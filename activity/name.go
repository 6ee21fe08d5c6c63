package activity

import (
	"reflect"
	"strings"
	"unicode"
)

// Named is implemented by activities that want to override the derived name.
type Named interface {
	Name() string
}

// NameOf returns the human-readable name of an activity. If the activity
// implements Named, its own name wins; otherwise the name is derived by
// de-camel-casing the implementation's type name, so a BuildIndex activity
// is reported as "Build index".
func NameOf(a any) string {
	if named, ok := a.(Named); ok {
		if name := named.Name(); name != "" {
			return name
		}
	}

	t := reflect.TypeOf(a)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "anonymous activity"
	}
	return capitalize(deCamelCase(t.Name()))
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// deCamelCase splits a CamelCase identifier into words. The first word keeps
// its capitalization, later words are lowercased unless they are acronyms:
// "GenerateLinks" becomes "Generate links", "ParseXMLSource" becomes
// "Parse XML source".
func deCamelCase(s string) string {
	words := splitCamelCase(s)
	for i, w := range words {
		if i == 0 || isAcronym(w) {
			continue
		}
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, " ")
}

// splitCamelCase breaks an identifier at lower-to-upper transitions and at
// the last capital of an acronym run ("XMLSource" -> "XML", "Source").
func splitCamelCase(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0

	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		switch {
		case unicode.IsUpper(cur) && !unicode.IsUpper(prev) && !unicode.IsDigit(prev):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}

// isAcronym reports whether a word is all upper case (and therefore keeps
// its capitalization when de-camel-casing).
func isAcronym(w string) bool {
	if len(w) < 2 {
		return false
	}
	for _, r := range w {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
