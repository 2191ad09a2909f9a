// Package matcher decides whether a catalog item's name satisfies a search
// phrase. Vendor menus mix standalone dishes with bundles that share their
// keywords, so plain substring matching is not enough.
package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule names the step that decided a verdict
type Rule string

const (
	RuleEmpty     Rule = "empty"
	RuleExact     Rule = "exact"
	RuleTokens    Rule = "tokens"
	RuleSynonym   Rule = "synonym"
	RuleCategory  Rule = "category"
	RuleExclusion Rule = "exclusion"
	RuleAccepted  Rule = "accepted"
)

// Verdict is the outcome of matching one name
type Verdict struct {
	Match  bool
	Rule   Rule
	Reason string
}

// Synonym lists the spellings vendors use for a dish name and the category
// the dish belongs to.
type Synonym struct {
	Alternates []string
	Category   string
}

// Rules holds the matching tables. The zero value matches on tokens only.
type Rules struct {
	Synonyms   map[string]Synonym
	Categories []string
	Sizes      []string
	// SizePattern catches quantities such as "32 cm" or "2 kişilik".
	SizePattern *regexp.Regexp
	Exclusions  []string
}

// Normalize lowercases s, folds diacritics and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ı", "i")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// Match reports whether name satisfies phrase
func (r Rules) Match(name, phrase string) bool {
	return r.Explain(name, phrase).Match
}

// Explain matches name against phrase and reports the deciding rule.
//
// A name carrying a bundle word is still kept when it literally contains
// the phrase's category word; that literal also stands in for missing
// descriptor tokens. Every other name must satisfy the token and synonym
// rules.
func (r Rules) Explain(name, phrase string) Verdict {
	n, p := Normalize(name), Normalize(phrase)
	if n == "" || p == "" {
		return Verdict{Rule: RuleEmpty, Reason: "empty name or phrase"}
	}
	if n == p {
		return Verdict{Match: true, Rule: RuleExact}
	}

	category := r.categoryOf(p)
	literal := category != "" && strings.Contains(n, category)
	bundle := r.exclusion(n)
	if bundle != "" && literal {
		return Verdict{Match: true, Rule: RuleAccepted, Reason: fmt.Sprintf("%q overrides bundle word %q", category, bundle)}
	}

	for _, token := range tokens(p) {
		if syn, ok := r.synonym(token); ok {
			if !containsAny(n, syn.Alternates) {
				return Verdict{Rule: RuleSynonym, Reason: fmt.Sprintf("no spelling of %q", token)}
			}
			continue
		}
		if !strings.Contains(n, token) {
			return Verdict{Rule: RuleTokens, Reason: fmt.Sprintf("missing %q", token)}
		}
	}

	if !literal && !r.hasSize(n) {
		return Verdict{Rule: RuleCategory, Reason: fmt.Sprintf("neither %q nor a size qualifier", category)}
	}
	if bundle != "" {
		return Verdict{Rule: RuleExclusion, Reason: fmt.Sprintf("bundle word %q", bundle)}
	}
	return Verdict{Match: true, Rule: RuleAccepted}
}

// tokens returns the phrase words longer than two runes
func tokens(p string) []string {
	var out []string
	for _, f := range strings.Fields(p) {
		if utf8.RuneCountInString(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func (r Rules) synonym(token string) (Synonym, bool) {
	for canonical, syn := range r.Synonyms {
		if Normalize(canonical) == token {
			return syn, true
		}
	}
	return Synonym{}, false
}

// categoryOf picks the phrase's category word: a listed category, else
// the category of a synonym entry, else the phrase's last word.
func (r Rules) categoryOf(p string) string {
	fields := strings.Fields(p)
	for _, f := range fields {
		for _, c := range r.Categories {
			if Normalize(c) == f {
				return f
			}
		}
	}
	for _, f := range fields {
		if syn, ok := r.synonym(f); ok && syn.Category != "" {
			return Normalize(syn.Category)
		}
	}
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func (r Rules) hasSize(n string) bool {
	if r.SizePattern != nil && r.SizePattern.MatchString(n) {
		return true
	}
	return hasWord(n, r.Sizes) != ""
}

func (r Rules) exclusion(n string) string {
	return hasWord(n, r.Exclusions)
}

func containsAny(n string, words []string) bool {
	for _, w := range words {
		if strings.Contains(n, Normalize(w)) {
			return true
		}
	}
	return false
}

// hasWord returns the first of words present in n as a whole word. Words
// with punctuation or spaces are matched as substrings.
func hasWord(n string, words []string) string {
	fields := strings.FieldsFunc(n, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}

	for _, w := range words {
		w = Normalize(w)
		if strings.IndexFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) >= 0 {
			if strings.Contains(n, w) {
				return w
			}
			continue
		}
		if set[w] {
			return w
		}
	}
	return ""
}
