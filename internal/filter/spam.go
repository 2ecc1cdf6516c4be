// Package filter provides pure filter functions for normalized signals.
// All functions are simple: []NormalizedSignal in, []NormalizedSignal out.
// No side effects.
package filter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/abelbrown/viralengine/internal/model"
)

// Reason names why a signal was rejected. Empty means kept.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEmptyTitle  Reason = "empty_title"
	ReasonBlocklist   Reason = "blocklist"
	ReasonAdPattern   Reason = "ad_pattern"
	ReasonAllCaps     Reason = "all_caps"
	ReasonSpecialChar Reason = "special_char_density"
)

// specialChars are the characters counted toward special-character density.
const specialChars = "!?$%&*"

// Defaults for unset SpamConfig thresholds.
const (
	DefaultCapsMinLength      = 20
	DefaultSpecialCharDensity = 0.15
)

// Spam rejects promotional and low-quality signals. It holds immutable
// tables; build one with NewSpam and share it.
type Spam struct {
	blocklist      []string
	titlePatterns  []*regexp.Regexp
	capsMinLength  int
	maxSpecialRate float64
}

// SpamConfig is the table set for NewSpam.
type SpamConfig struct {
	// Blocklist entries are matched case-insensitively as substrings of the
	// title and excerpt.
	Blocklist []string
	// CapsMinLength: all-caps titles longer than this are spam.
	CapsMinLength int
	// SpecialCharDensity: titles whose share of !?$%&* exceeds this are spam.
	SpecialCharDensity float64
}

// NewSpam builds a spam filter from cfg. Blocklist entries are lowercased
// once here; zero thresholds take the defaults.
func NewSpam(cfg SpamConfig) *Spam {
	if cfg.CapsMinLength <= 0 {
		cfg.CapsMinLength = DefaultCapsMinLength
	}
	if cfg.SpecialCharDensity <= 0 {
		cfg.SpecialCharDensity = DefaultSpecialCharDensity
	}
	block := make([]string, 0, len(cfg.Blocklist))
	for _, kw := range cfg.Blocklist {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			block = append(block, kw)
		}
	}
	return &Spam{
		blocklist: block,
		titlePatterns: compilePatterns([]string{
			`(?i)^sponsored:`,
			`(?i)^ad:`,
			`(?i)\[sponsored\]`,
			`(?i)\[ad\]`,
			`(?i)^promo:`,
		}),
		capsMinLength:  cfg.CapsMinLength,
		maxSpecialRate: cfg.SpecialCharDensity,
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	result := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			result = append(result, re)
		}
	}
	return result
}

// Check returns why sig is spam, or ReasonNone.
func (f *Spam) Check(sig model.NormalizedSignal) Reason {
	title := strings.TrimSpace(sig.Title)
	if title == "" {
		return ReasonEmptyTitle
	}

	titleLower := strings.ToLower(title)
	excerptLower := strings.ToLower(sig.RawExcerpt)
	for _, kw := range f.blocklist {
		if strings.Contains(titleLower, kw) || strings.Contains(excerptLower, kw) {
			return ReasonBlocklist
		}
	}

	for _, re := range f.titlePatterns {
		if re.MatchString(title) {
			return ReasonAdPattern
		}
	}

	if isAllCaps(title, f.capsMinLength) {
		return ReasonAllCaps
	}

	if specialCharDensity(title) > f.maxSpecialRate {
		return ReasonSpecialChar
	}

	return ReasonNone
}

// IsSpam reports whether sig should be dropped.
func (f *Spam) IsSpam(sig model.NormalizedSignal) bool {
	return f.Check(sig) != ReasonNone
}

// Apply returns the signals that are not spam, and how many were dropped per
// reason.
func (f *Spam) Apply(sigs []model.NormalizedSignal) ([]model.NormalizedSignal, map[Reason]int) {
	kept := make([]model.NormalizedSignal, 0, len(sigs))
	dropped := make(map[Reason]int)
	for _, s := range sigs {
		if r := f.Check(s); r != ReasonNone {
			dropped[r]++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped
}

// isAllCaps reports whether title is longer than minLen runes, contains at
// least one letter, and has no lowercase letters.
func isAllCaps(title string, minLen int) bool {
	if len([]rune(title)) <= minLen {
		return false
	}
	hasLetter := false
	for _, r := range title {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// specialCharDensity is the share of title runes that are in specialChars.
func specialCharDensity(title string) float64 {
	total, special := 0, 0
	for _, r := range title {
		total++
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}
