package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the keyword tables that drive rule-based extraction and
// the unusual-symptom screen. A YAML file pointed at by LEXICON_PATH
// overrides individual tables; anything left empty keeps the built-in
// default so the file only needs to list what it changes.
type Lexicon struct {
	FlowKeywords     map[string][]string `yaml:"flow_keywords"`
	StatusKeywords   map[string][]string `yaml:"status_keywords"`
	SymptomKeywords  map[string][]string `yaml:"symptom_keywords"`
	MoodKeywords     map[string][]string `yaml:"mood_keywords"`
	SeverityKeywords map[string][]string `yaml:"severity_keywords"`
	UnusualTerms     []string            `yaml:"unusual_terms"`
}

// DefaultLexicon returns the built-in tables. Flow and status tables are
// keyed by the canonical value they resolve to.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		FlowKeywords: map[string][]string{
			"light":    {"light flow", "light period", "light bleeding", "light"},
			"medium":   {"medium flow", "normal flow", "regular flow", "medium"},
			"heavy":    {"heavy flow", "heavy period", "heavy bleeding", "heavy", "very heavy"},
			"spotting": {"spotting", "light spotting", "brown discharge"},
		},
		StatusKeywords: map[string][]string{
			"start": {"started", "starting", "start of", "began", "begun", "just got my period", "came on"},
			"end":   {"ended", "ending", "finished", "stopped", "is over", "over now"},
			"none":  {"no period", "not on my period", "no bleeding", "period hasn't come"},
		},
		SymptomKeywords: map[string][]string{
			"cramps":            {"cramp", "cramps", "cramping"},
			"headache":          {"headache", "head ache", "migraine"},
			"nausea":            {"nausea", "nauseous", "queasy"},
			"fatigue":           {"fatigue", "fatigued", "tired", "exhausted", "exhaustion"},
			"bloating":          {"bloated", "bloating", "swollen"},
			"backache":          {"backache", "back pain", "back ache"},
			"breast tenderness": {"tender breasts", "breast tenderness", "sore breasts"},
			"acne":              {"acne", "breakout", "breakouts"},
			"dizziness":         {"dizzy", "dizziness", "lightheaded", "light-headed"},
			"fainting":          {"faint", "fainted", "fainting", "passed out"},
			"fever":             {"fever", "feverish"},
			"vomiting":          {"vomiting", "vomit", "throwing up", "threw up"},
			"insomnia":          {"insomnia", "can't sleep", "trouble sleeping"},
			"pain":              {"pain", "aching", "ache"},
		},
		MoodKeywords: map[string][]string{
			"happy":     {"happy", "good", "great", "amazing", "wonderful"},
			"sad":       {"sad", "down", "depressed", "unhappy", "teary", "crying"},
			"anxious":   {"anxious", "nervous", "worried", "stressed", "anxiety"},
			"irritable": {"irritable", "irritated", "moody", "annoyed", "cranky"},
			"calm":      {"calm", "relaxed", "peaceful"},
			"angry":     {"angry", "mad", "furious"},
			"emotional": {"emotional", "overwhelmed"},
		},
		SeverityKeywords: map[string][]string{
			"severe":   {"severe", "intense", "extreme", "terrible", "unbearable", "excruciating", "really bad", "very bad", "worst"},
			"moderate": {"moderate", "bad", "pretty bad", "noticeable"},
			"mild":     {"mild", "slight", "slightly", "a little", "minor"},
		},
		UnusualTerms: []string{
			"severe", "extreme", "unusual", "abnormal", "heavy bleeding",
			"intense pain", "fainting", "dizziness", "fever", "vomiting",
		},
	}
}

// LoadLexicon reads a YAML lexicon file and fills any table the file does
// not set from the defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file: %w", err)
	}

	def := DefaultLexicon()
	if len(lex.FlowKeywords) == 0 {
		lex.FlowKeywords = def.FlowKeywords
	}
	if len(lex.StatusKeywords) == 0 {
		lex.StatusKeywords = def.StatusKeywords
	}
	if len(lex.SymptomKeywords) == 0 {
		lex.SymptomKeywords = def.SymptomKeywords
	}
	if len(lex.MoodKeywords) == 0 {
		lex.MoodKeywords = def.MoodKeywords
	}
	if len(lex.SeverityKeywords) == 0 {
		lex.SeverityKeywords = def.SeverityKeywords
	}
	if len(lex.UnusualTerms) == 0 {
		lex.UnusualTerms = def.UnusualTerms
	}
	return &lex, nil
}
