package nginx

import (
	"regexp"
	"strings"
)

// MatchRank orders server_name match kinds by nginx precedence.
type MatchRank int

const (
	RankExact MatchRank = iota
	RankWildcardStart
	RankWildcardEnd
	RankRegex
	RankNoMatch
)

func (r MatchRank) String() string {
	switch r {
	case RankExact:
		return "exact"
	case RankWildcardStart:
		return "wildcard_start"
	case RankWildcardEnd:
		return "wildcard_end"
	case RankRegex:
		return "regex"
	}
	return "none"
}

// BestMatch returns the name that wins for the target under nginx
// precedence, its rank, and how many names matched within that rank.
// Exact ties prefer the shortest name, wildcard ties the longest; regex
// candidates keep declaration order and the first one wins.
func BestMatch(target string, names []string) (string, MatchRank, int) {
	var exact, wcStart, wcEnd, regex []string
	for _, name := range names {
		switch {
		case exactMatch(target, name):
			exact = append(exact, name)
		case wildcardMatch(target, name, true):
			wcStart = append(wcStart, name)
		case wildcardMatch(target, name, false):
			wcEnd = append(wcEnd, name)
		case regexMatch(target, name):
			regex = append(regex, name)
		}
	}
	switch {
	case len(exact) > 0:
		return pickByLength(exact, false), RankExact, len(exact)
	case len(wcStart) > 0:
		return pickByLength(wcStart, true), RankWildcardStart, len(wcStart)
	case len(wcEnd) > 0:
		return pickByLength(wcEnd, true), RankWildcardEnd, len(wcEnd)
	case len(regex) > 0:
		return regex[0], RankRegex, len(regex)
	}
	return "", RankNoMatch, 0
}

func exactMatch(target, name string) bool {
	return target == name || "."+target == name
}

// wildcardMatch follows nginx wildcard semantics: a leading "*." or "."
// covers one or more labels at the front, a trailing ".*" covers one or
// more labels at the back, and a bare "*" matches everything.
func wildcardMatch(target, name string, start bool) bool {
	if name == "*" {
		return true
	}
	parts := strings.Split(name, ".")
	var first, rest string
	if start {
		first = parts[0]
		rest = strings.Join(parts[1:], ".")
	} else {
		first = parts[len(parts)-1]
		rest = strings.Join(parts[:len(parts)-1], ".")
	}
	if first != "*" && first != "" {
		return false
	}
	if rest == "" {
		return false
	}
	if start {
		return strings.HasSuffix(target, "."+rest)
	}
	return strings.HasPrefix(target, rest+".")
}

// regexMatch treats names starting with "~" as a pattern anchored at the
// start of the target, matching nginx's regex server names. A pattern
// that does not compile matches nothing.
func regexMatch(target, name string) bool {
	if !strings.HasPrefix(name, "~") {
		return false
	}
	re, err := regexp.Compile("^(?:" + name[1:] + ")")
	if err != nil {
		return false
	}
	return re.MatchString(target)
}

// RegexNames returns the regex-form names matching the target, in
// declaration order. Callers use it to report which patterns collide
// when a match is ambiguous.
func RegexNames(target string, names []string) []string {
	var out []string
	for _, name := range names {
		if regexMatch(target, name) {
			out = append(out, name)
		}
	}
	return out
}

// pickByLength breaks ties inside a rank: longest wins for wildcards,
// shortest for exacts, lexicographic order settles equal lengths.
func pickByLength(names []string, longest bool) string {
	best := names[0]
	for _, n := range names[1:] {
		switch {
		case longest && (len(n) > len(best) || (len(n) == len(best) && n < best)):
			best = n
		case !longest && (len(n) < len(best) || (len(n) == len(best) && n < best)):
			best = n
		}
	}
	return best
}

// IsWildcardDomain reports whether a requested certificate domain is a
// wildcard (leading "*." label).
func IsWildcardDomain(domain string) bool {
	return strings.HasPrefix(domain, "*.")
}

// WildcardCondition builds the host condition for a redirect if-block:
// plain domains compare with "=", wildcard domains with a "~" regex that
// pins dots and lets "*" cover exactly one label.
func WildcardCondition(domain string) (symbol, operand string) {
	if !IsWildcardDomain(domain) {
		return "=", domain
	}
	pattern := strings.ReplaceAll(domain, ".", `\.`)
	pattern = strings.ReplaceAll(pattern, "*", "[^.]+")
	return "~", "^" + pattern + "$"
}
