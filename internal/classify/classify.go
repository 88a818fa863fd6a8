// Package classify implements the keyword trigger classifier: a cheap,
// deterministic pre-filter that recognizes a handful of known customer
// intents before any model call is spent on them. Matching is case-folded
// substring search, which is enough for the short Portuguese phrases the
// keyword lists carry.
package classify

import (
	"strings"

	"golang.org/x/text/cases"
)

// distrustKeywords flag skepticism about payment or legitimacy. The first
// match in a conversation gets the fixed reassurance response so that
// fraud-sensitive wording never depends on model variance.
var distrustKeywords = []string{
	"golpe",
	"confiável",
	"fake",
	"pix antes",
	"site seguro",
	"fraude",
	"verdade",
	"mentira",
	"enganar",
	"roubo",
	"falso",
}

// humanRequestKeywords flag an explicit ask for a person. They switch the
// conversation to the humanized persona rather than paging an operator.
var humanRequestKeywords = []string{
	"atendente",
	"falar com humano",
	"falar com alguém",
	"falar com uma pessoa",
	"pessoa de verdade",
	"quero falar com",
	"me transfere",
	"ser humano",
}

// IsDistrustSignal reports whether text contains a distrust keyword.
func IsDistrustSignal(text string) bool {
	return matchAny(text, distrustKeywords)
}

// IsHumanRequestSignal reports whether text asks for a human. Callers must
// check this before IsDistrustSignal: a message carrying both signals is
// treated as a human request.
func IsHumanRequestSignal(text string) bool {
	return matchAny(text, humanRequestKeywords)
}

func matchAny(text string, keywords []string) bool {
	// A Caser may be stateful, so each call gets its own.
	folder := cases.Fold()
	folded := folder.String(text)
	for _, kw := range keywords {
		if strings.Contains(folded, folder.String(kw)) {
			return true
		}
	}
	return false
}
