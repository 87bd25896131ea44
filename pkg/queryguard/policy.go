package queryguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Mutating and administrative operation patterns. A candidate query matching
// any of these is rejected outright.
var denyPatterns = []string{
	`\bDELETE\b`,
	`\bDETACH\s+DELETE\b`,
	`\bDROP\b`,
	`\bREMOVE\b`,
	`\bSET\b`,
	`\bCREATE\b`,
	`\bMERGE\b`,
	`\bALTER\b`,
	`\bCALL\s+apoc\.`,
	`\bLOAD\s+CSV\b`,
	`\bCREATE\s+USER\b`,
}

// Read-only constructs. A candidate must contain at least one of these to
// count as a legitimate query at all.
var allowPatterns = []string{
	`\bMATCH\b`,
	`\bRETURN\b`,
	`\bWHERE\b`,
	`\bWITH\b`,
	`\bORDER\s+BY\b`,
	`\bLIMIT\b`,
	`\bSKIP\b`,
	`\bUNION\b`,
	`\bCOUNT\b`,
	`\bCOLLECT\b`,
	`\bDISTINCT\b`,
}

// Policy is the read-only rule set applied to generated queries.
type Policy struct {
	deny  []*regexp.Regexp
	allow []*regexp.Regexp
}

// NewPolicy compiles the default deny and allow pattern sets.
func NewPolicy() *Policy {
	p := &Policy{}
	for _, pat := range denyPatterns {
		p.deny = append(p.deny, regexp.MustCompile(`(?i)`+pat))
	}
	for _, pat := range allowPatterns {
		p.allow = append(p.allow, regexp.MustCompile(`(?i)`+pat))
	}
	return p
}

// Validate checks a candidate query against the policy:
//
//  1. no denylisted mutating/administrative keyword anywhere,
//  2. no additional statement smuggled in after a separator,
//  3. at least one allowlisted read-only construct present.
//
// It returns a human-readable reason on rejection.
func (p *Policy) Validate(query string) (bool, string) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false, "empty query"
	}

	for _, re := range p.deny {
		if re.MatchString(trimmed) {
			return false, fmt.Sprintf("query contains a forbidden operation (%s)", patternName(re))
		}
	}

	// Each statement of a multi-statement candidate is checked separately so
	// a mutating clause cannot hide behind a read-only prefix.
	if strings.Contains(trimmed, ";") {
		for _, stmt := range strings.Split(trimmed, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			for _, re := range p.deny {
				if re.MatchString(stmt) {
					return false, "multi-statement query contains a forbidden operation"
				}
			}
		}
	}

	for _, re := range p.allow {
		if re.MatchString(trimmed) {
			return true, ""
		}
	}
	return false, "query contains no recognized read-only construct"
}

func patternName(re *regexp.Regexp) string {
	s := re.String()
	s = strings.TrimPrefix(s, `(?i)`)
	s = strings.ReplaceAll(s, `\b`, "")
	s = strings.ReplaceAll(s, `\s+`, " ")
	return s
}
