package guardrails

import "regexp"

// PatternSet is a named table of compiled case-insensitive patterns.
type PatternSet struct {
	Name     string
	patterns []*regexp.Regexp
}

// NewPatternSet compiles exprs as case-insensitive regular expressions.
// It panics on an invalid expression; tables are package data.
func NewPatternSet(name string, exprs ...string) *PatternSet {
	ps := &PatternSet{Name: name, patterns: make([]*regexp.Regexp, 0, len(exprs))}
	for _, e := range exprs {
		ps.patterns = append(ps.patterns, regexp.MustCompile("(?i)"+e))
	}
	return ps
}

// Match reports whether any pattern of the set occurs in text.
func (ps *PatternSet) Match(text string) bool {
	if ps == nil {
		return false
	}
	for _, p := range ps.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns in the set.
func (ps *PatternSet) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.patterns)
}

// AnyOf matches when at least one of the given sets matches.
func AnyOf(text string, sets ...*PatternSet) bool {
	for _, s := range sets {
		if s.Match(text) {
			return true
		}
	}
	return false
}

// Patterns groups every table the input guardrail consults.
type Patterns struct {
	Injection       *PatternSet
	NonMedical      *PatternSet
	Creative        *PatternSet
	PatientSpecific *PatternSet
	Diagnosis       *PatternSet
	Disease         *PatternSet
	Medication      *PatternSet
}

// DefaultPatterns returns the built-in pattern tables.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Injection: NewPatternSet("prompt_injection",
			`ignore (all|previous) instructions`,
			`system prompt`,
			`developer message`,
			`jailbreak`,
			`bypass safety`,
			`act as`,
			`pretend you are`,
			`you are now`,
			`do anything now`,
			`reveal your rules`,
			`show hidden prompt`,
			`disable guardrails`,
		),
		NonMedical: NewPatternSet("out_of_scope",
			`bitcoin`,
			`stock price`,
			`movie`,
			`song`,
			`politics`,
			`game`,
		),
		// "rap" is word-bounded so "therapy" is not a creative request.
		Creative: NewPatternSet("creative",
			`poem`,
			`joke`,
			`story`,
			`song`,
			`\brap\b`,
			`lyrics`,
			`haiku`,
			`dialogue`,
			`character`,
		),
		PatientSpecific: NewPatternSet("patient_specific",
			`\bmy patient\b`,
			`\bmy father\b`,
			`\bmy mother\b`,
			`\bmy friend\b`,
			`\bI am taking\b`,
			`\bmy symptoms\b`,
			`\bshould I take\b`,
			`\bcan I take\b`,
			`\bdose for me\b`,
		),
		Diagnosis: NewPatternSet("diagnosis",
			`diagnose`,
			`what disease do I have`,
			`am I suffering from`,
		),
		Disease: NewPatternSet("disease",
			`\bdiabetes\b`,
			`\bhypertension\b`,
			`\basthma\b`,
			`\bheart\b`,
			`\bkidney\b`,
			`\bliver\b`,
			`\bcancer\b`,
		),
		Medication: NewPatternSet("medication",
			`\bmg\b`,
			`\btablet\b`,
			`\bcapsule\b`,
			`\binjection\b`,
			`\bdose\b`,
			`\bmetformin\b`,
			`\binsulin\b`,
			`\bparacetamol\b`,
			`\baspirin\b`,
		),
	}
}
