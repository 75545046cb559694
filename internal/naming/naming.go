// Package naming holds the string transforms that keep the generated SQL,
// data-access and controller stubs consistent with each other.
package naming

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Verb is the classification of a routine by its name prefix.
type Verb int

const (
	VerbUnclassified Verb = iota
	VerbGet
	VerbSet
)

// String returns the lower-case verb token.
func (v Verb) String() string {
	switch v {
	case VerbGet:
		return "get"
	case VerbSet:
		return "set"
	default:
		return "unclassified"
	}
}

const (
	paramSigil = "@"
	verbLength = 3
	idSuffix   = "ID"
	idHint     = ":id"
)

var wordBoundary = regexp.MustCompile(`(\w)([A-Z])`)

// ToCamel lower-cases the first character only.
func ToCamel(identifier string) string {
	return mapFirstRune(identifier, unicode.ToLower)
}

// Capitalize upper-cases the first character only.
func Capitalize(identifier string) string {
	return mapFirstRune(identifier, unicode.ToUpper)
}

func mapFirstRune(s string, mapping func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(mapping(r)) + s[size:]
}

// ToParameterName turns a catalog parameter such as "@TransactionID" into the
// stub parameter name "transactionID".
func ToParameterName(catalogParam string) string {
	return ToCamel(strings.TrimPrefix(catalogParam, paramSigil))
}

// ToCatalogParameter adds the parameter sigil when the catalog omitted it.
func ToCatalogParameter(name string) string {
	if strings.HasPrefix(name, paramSigil) {
		return name
	}
	return paramSigil + name
}

// ClassifyVerb matches the first three characters of a routine name against
// the get and set verbs, ignoring case.
func ClassifyVerb(routineName string) Verb {
	if len(routineName) < verbLength {
		return VerbUnclassified
	}
	switch strings.ToLower(routineName[:verbLength]) {
	case "get":
		return VerbGet
	case "set":
		return VerbSet
	default:
		return VerbUnclassified
	}
}

// StripVerb removes a classified verb prefix. Unclassified names pass through.
func StripVerb(routineName string) string {
	if ClassifyVerb(routineName) == VerbUnclassified {
		return routineName
	}
	return routineName[verbLength:]
}

// IsPluralShaped decides whether a get routine returns a row-set. It is a
// suffix heuristic, not a pluralizer: exception members always match, then
// names ending in s, list, data or sdeleted (any case).
func IsPluralShaped(name string, exceptions []string) bool {
	for _, exception := range exceptions {
		if name == exception {
			return true
		}
	}
	lower := strings.ToLower(name)
	for _, suffix := range []string{"s", "list", "data", "sdeleted"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// RouteToken renders one route segment; names ending in ID get an id hint.
func RouteToken(name string) string {
	if strings.HasSuffix(name, idSuffix) {
		return "{" + name + idHint + "}"
	}
	return "{" + name + "}"
}

// RouteTokens joins "/{name}" segments for every name not in skip.
func RouteTokens(names []string, skip []string) string {
	var b strings.Builder
	for _, name := range names {
		if contains(skip, name) {
			continue
		}
		b.WriteString("/")
		b.WriteString(RouteToken(name))
	}
	return b.String()
}

// RouteResource is the resource segment of a get route. Tabular routines
// drop a trailing configured suffix so list routines route on the
// collection, e.g. GetWidgetsList -> Widgets.
func RouteResource(routineName string, tabular bool, suffixes []string) string {
	resource := StripVerb(routineName)
	if !tabular {
		return resource
	}
	lower := strings.ToLower(resource)
	for _, suffix := range suffixes {
		if suffix == "" || len(suffix) >= len(resource) {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return resource[:len(resource)-len(suffix)]
		}
	}
	return resource
}

// SplitWords spaces out internal capitals and lower-cases the result:
// "WidgetsList" -> "widgets list".
func SplitWords(name string) string {
	return strings.ToLower(wordBoundary.ReplaceAllString(name, "${1} ${2}"))
}

// PutMethodName swaps a leading set verb for Put.
func PutMethodName(routineName string) string {
	if ClassifyVerb(routineName) == VerbSet {
		return "Put" + routineName[verbLength:]
	}
	return routineName
}

// PayloadName is the controller parameter that carries a set routine's body.
func PayloadName(routineName string) string {
	return ToCamel(StripVerb(routineName) + "Object")
}

// NamespaceRule routes routines whose name contains a token to a model namespace.
type NamespaceRule struct {
	Contains  string `mapstructure:"contains"`
	Namespace string `mapstructure:"namespace"`
}

// ModelNamespace returns the namespace of the first rule whose token occurs
// in the routine name (ignoring case), or fallback.
func ModelNamespace(routineName string, rules []NamespaceRule, fallback string) string {
	lower := strings.ToLower(routineName)
	for _, rule := range rules {
		if rule.Contains != "" && strings.Contains(lower, strings.ToLower(rule.Contains)) {
			return rule.Namespace
		}
	}
	return fallback
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
