// Package classifier labels a natural-language query with intent,
// scope, target type, framework-context, and a keyword set, the way
// the teacher's context.Detector labels a workspace from file presence
// and keyword tables — here applied to a query string instead of a
// filesystem.
package classifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"codecortex/pkg/codeunit"
	"codecortex/pkg/retrieval"
)

var lowerCaser = cases.Lower(language.Und)

// intentRule is one entry in the ordered intent table; first match wins.
type intentRule struct {
	pattern *regexp.Regexp
	intent  retrieval.Intent
}

var intentRules = []intentRule{
	{regexp.MustCompile(`\btrace\b|\bflow\b`), retrieval.IntentTrace},
	{regexp.MustCompile(`\bhow\s+does\b|\bhow\s+is\b|\bwhat\s+does\b|\bexplain\b`), retrieval.IntentUnderstand},
	{regexp.MustCompile(`\bwhere\s+is\b|\bfind\b|\blocate\b`), retrieval.IntentFind},
	{regexp.MustCompile(`\bimplement\b|\badd\b|\bcreate\b|\bbuild\b`), retrieval.IntentImplement},
	{regexp.MustCompile(`\bfix\b|\bbug\b|\bbroken\b|\bfailing\b|\berror\b|\bcrash\b`), retrieval.IntentDebug},
}

// enumerativePattern flags phrasing that asks for a whole class of
// things rather than one specific unit.
var enumerativePattern = regexp.MustCompile(`\ball\b|\bevery\b|\beach\b|\blist\b|\bwhich\s+ones\b|\bwhat\s+are\s+the\b`)

// identifierPattern flags a token that reads like a code identifier:
// CamelCase, snake_case with an underscore, or a dotted/slashed path.
var identifierPattern = regexp.MustCompile(`[A-Za-z][a-z0-9]+[A-Z]\w*|\w+_\w+|[\w/.\-]+\.(rb|go|py|js|ts|rake)\b`)

// frameworkTermsPattern flags presence of framework-specific vocabulary.
var frameworkTermsPattern = regexp.MustCompile(`\bactiverecord\b|\brails\b|\bcontroller\b|\bmodel\b|\bmigration\b|\bmiddleware\b|\brouter\b|\bconcern\b|\bcallback\b|\bvalidation\b|\bassociation\b|\bscope\b`)

// targetTypeRule maps a keyword pattern to a unit.Type; first match wins.
type targetTypeRule struct {
	pattern *regexp.Regexp
	target  codeunit.Type
}

var targetTypeRules = []targetTypeRule{
	{regexp.MustCompile(`\bmodel\b`), codeunit.TypeModel},
	{regexp.MustCompile(`\bcontroller\b`), codeunit.TypeController},
	{regexp.MustCompile(`\bservice\b`), codeunit.TypeService},
	{regexp.MustCompile(`\bjob\b|\bworker\b`), codeunit.TypeJob},
	{regexp.MustCompile(`\bmailer\b|\bemail\b`), codeunit.TypeMailer},
	{regexp.MustCompile(`\bcomponent\b|\bview\b`), codeunit.TypeViewComponent},
	{regexp.MustCompile(`\bconcern\b`), codeunit.TypeConcern},
	{regexp.MustCompile(`\bgraphql\b|\btype\b`), codeunit.TypeGraphQLType},
	{regexp.MustCompile(`\broute\b|\brouting\b`), codeunit.TypeRoute},
	{regexp.MustCompile(`\bmigration\b|\bschema\b`), codeunit.TypeMigration},
	{regexp.MustCompile(`\bcache\b`), codeunit.TypeCacheSite},
	{regexp.MustCompile(`\bstate\s*machine\b|\bstate_machine\b`), codeunit.TypeStateMachine},
}

// stopWords are dropped during keyword extraction, same idea as the
// teacher's safeEnvVars allow-list but inverted into a deny-list.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"does": {}, "do": {}, "did": {}, "how": {}, "what": {}, "where": {},
	"when": {}, "why": {}, "which": {}, "who": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "and": {}, "or": {}, "but": {}, "for": {},
	"with": {}, "from": {}, "into": {}, "onto": {}, "about": {}, "all": {},
	"each": {}, "every": {}, "can": {}, "could": {}, "would": {}, "should": {},
	"has": {}, "have": {}, "had": {}, "it": {}, "its": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "as": {}, "be": {}, "been": {},
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Classify applies the three ordered regex tables and keyword
// extraction to query. It performs no network or store access.
func Classify(query string) retrieval.Classification {
	lowered := lowerCaser.String(query)

	return retrieval.Classification{
		Intent:           classifyIntent(lowered),
		Scope:            classifyScope(query, lowered),
		TargetType:       classifyTargetType(lowered),
		FrameworkContext: frameworkTermsPattern.MatchString(lowered),
		Keywords:         extractKeywords(lowered),
		Query:            query,
	}
}

func classifyIntent(lowered string) retrieval.Intent {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(lowered) {
			return rule.intent
		}
	}
	return retrieval.IntentOther
}

func classifyScope(original, lowered string) retrieval.Scope {
	if identifierPattern.MatchString(original) || identifierPattern.MatchString(lowered) {
		return retrieval.ScopeSpecific
	}
	if enumerativePattern.MatchString(lowered) {
		return retrieval.ScopeBroad
	}
	return retrieval.ScopeFocused
}

func classifyTargetType(lowered string) string {
	for _, rule := range targetTypeRules {
		if rule.pattern.MatchString(lowered) {
			return string(rule.target)
		}
	}
	return retrieval.NoTargetType
}

// extractKeywords splits on non-word characters, lowercases, drops
// stop-words and tokens shorter than 3 characters, and deduplicates
// while preserving first-seen order.
func extractKeywords(lowered string) []string {
	tokens := wordPattern.FindAllString(lowered, -1)
	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}
