// Package text turns raw extracted book text into narration-ready Brazilian
// Portuguese and splits it into chunks a speech backend accepts.
//
// The pipeline runs four stages in a fixed order: source normalization,
// chapter heading formatting, lexical expansion of abbreviations and numbers,
// and a final cleanup that guarantees paragraph shape. Every stage is a pure
// string transformation, so a Preprocessor is safe for concurrent use.
package text

import (
	"errors"
	"strings"
)

// ErrEmptyAbbreviation is returned when a rule file holds an abbreviation
// without a form to match.
var ErrEmptyAbbreviation = errors.New("abbreviation rule has an empty form")

// NumberSpeller spells integers as words. Implementations return an error for
// values they cannot spell, and the number is then left as digits.
type NumberSpeller interface {
	Cardinal(n int64) (string, error)
	Ordinal(n int64) (string, error)
}

// Preprocessor holds the compiled stages. Build it once with NewPreprocessor
// and reuse it.
type Preprocessor struct {
	normalizer *normalizer
	chapters   *chapterFormatter
	lexicon    *lexicalExpander
	cleaner    *cleaner
}

// NewPreprocessor compiles the rule table. The rules are copied, so later
// changes by the caller have no effect.
func NewPreprocessor(rules Rules, speller NumberSpeller) *Preprocessor {
	rules = rules.clone()

	chapters := newChapterFormatter(rules.ChapterNumerals)

	return &Preprocessor{
		normalizer: newNormalizer(rules, chapters.headingLine),
		chapters:   chapters,
		lexicon:    newLexicalExpander(rules.Abbreviations, speller, chapters.isCanonical),
		cleaner:    newCleaner(chapters.isCanonical),
	}
}

// Normalize runs the whole pipeline.
func (p *Preprocessor) Normalize(raw string) string {
	text := p.NormalizeSource(raw)
	text = p.FormatChapters(text)
	text = p.ExpandLexicon(text)
	text = p.FinalCleanup(text)

	return strings.TrimSpace(text)
}

// NormalizeSource fixes encoding, drops junk and front matter, folds
// punctuation, strips markdown emphasis and rebuilds wrapped paragraphs.
func (p *Preprocessor) NormalizeSource(raw string) string {
	return p.normalizer.normalize(raw)
}

// FormatChapters rewrites each chapter heading line as "CAPÍTULO N." with the
// title, if any, in its own paragraph.
func (p *Preprocessor) FormatChapters(text string) string {
	return p.chapters.format(text)
}

// ExpandLexicon expands abbreviations, ordinals, money, ranges and cardinals.
// Canonical heading lines are left untouched.
func (p *Preprocessor) ExpandLexicon(text string) string {
	return p.lexicon.expand(text)
}

// FinalCleanup normalizes spacing and gives every non-heading paragraph a
// terminal mark.
func (p *Preprocessor) FinalCleanup(text string) string {
	return p.cleaner.clean(text)
}
