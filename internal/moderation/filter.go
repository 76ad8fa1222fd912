package moderation

import (
	"fmt"
	"regexp"
)

// Filter classifies post bodies against a denylist. It is stateless and
// deterministic: the same text always yields the same verdict. Matching is
// case-insensitive and anchored on word boundaries, so "killer whale" passes
// while "kill" alone does not.
type Filter struct {
	rules []rule
}

type rule struct {
	name string
	re   *regexp.Regexp
}

// Verdict is the outcome of classifying one text. Rule names the denylist
// entry that blocked it, empty when allowed.
type Verdict struct {
	Allowed bool
	Rule    string
}

// defaultPatterns is the built-in denylist: obscenity with common censored
// and leetspeak spellings, plus violence, hate and abuse terms. It is data,
// not behavior; deployments extend it through configuration.
var defaultPatterns = []namedPattern{
	{"obscenity", `\b(fuck|f\*+k|fxxk)\b`},
	{"obscenity", `\b(shit|s\*+t)\b`},
	{"obscenity", `\b(bitch|b!tch|b1tch)\b`},
	{"obscenity", `\b(asshole|a\*+hole)\b`},
	{"obscenity", `\b(dick|d!ck|d1ck)\b`},
	{"sexual-violence", `\b(rape|rapist)\b`},
	{"violence", `\b(kill|murder)\b`},
	{"hate", `\b(hate|hatred)\b`},
	{"hate", `\b(racist|racism|slur)\b`},
	{"terrorism", `\b(terror|terrorist)\b`},
	{"violence", `\b(violence|violent)\b`},
	{"abuse", `\b(abuse|abusive)\b`},
}

type namedPattern struct {
	name    string
	pattern string
}

// NewFilter builds a filter from the built-in denylist plus extra patterns
// from configuration. Extra patterns are matched case-insensitively as given;
// callers are responsible for their own \b anchors.
func NewFilter(extraPatterns []string) (*Filter, error) {
	rules := make([]rule, 0, len(defaultPatterns)+len(extraPatterns))
	for _, p := range defaultPatterns {
		rules = append(rules, rule{name: p.name, re: regexp.MustCompile(`(?i)` + p.pattern)})
	}
	for _, p := range extraPatterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid moderation pattern %q: %w", p, err)
		}
		rules = append(rules, rule{name: "custom", re: re})
	}
	return &Filter{rules: rules}, nil
}

// Classify returns the verdict for text. The first matching rule wins.
func (f *Filter) Classify(text string) Verdict {
	for _, r := range f.rules {
		if r.re.MatchString(text) {
			return Verdict{Allowed: false, Rule: r.name}
		}
	}
	return Verdict{Allowed: true}
}
