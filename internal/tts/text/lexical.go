package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// numberPattern matches every numeric form in one pass, so a span the speller
// rejects is left as written and never rescanned. Alternatives are tried in
// order at each position.
const numberPattern = `(?P<ordinal>(?P<ordinalDigits>\d+)(?P<ordinalSuffix>[oOaAºª]))` +
	`|(?P<money>R\$[ \t]*(?P<moneyDigits>\d{1,3}(?:\.\d{3})+|\d+)(?:,\d{2})?)` +
	`|(?P<grouped>\d{1,3}(?:\.\d{3})+)` +
	`|(?P<range>(?P<rangeFrom>\d+)[ \t]*-[ \t]*(?P<rangeTo>\d+))` +
	`|\d+`

const (
	yearDigits        = 4
	yearMin           = 1900
	yearMax           = 2100
	maxCardinalDigits = 7
	currencyWord      = " reais"
	rangeConnector    = " a "
	thousandsMark     = "."
	feminineSuffixes  = "aAª"
	masculineEnding   = "o"
	feminineEnding    = "a"
	periodSuffix      = "."
)

// abbreviationMatcher is one compiled AbbreviationRule. The pattern carries no
// boundaries because regexp's \b only knows ASCII; replace checks them on the
// surrounding runes instead.
type abbreviationMatcher struct {
	pattern     *regexp.Regexp
	expansion   string
	afterNumber bool
	guardLead   bool
	periodForm  bool
}

// numberGroups holds the submatch indices of numberPattern.
type numberGroups struct {
	ordinal, ordinalDigits, ordinalSuffix int
	money, moneyDigits                    int
	grouped                               int
	numberRange, rangeFrom, rangeTo       int
}

type lexicalExpander struct {
	speller       NumberSpeller
	isCanonical   func(line string) bool
	abbreviations []abbreviationMatcher

	numbers *regexp.Regexp
	groups  numberGroups
}

func newLexicalExpander(
	rules []AbbreviationRule,
	speller NumberSpeller,
	isCanonical func(line string) bool,
) *lexicalExpander {
	abbreviations := make([]abbreviationMatcher, 0, len(rules))
	for _, rule := range rules {
		if rule.Form == "" {
			continue
		}

		abbreviations = append(abbreviations, compileAbbreviation(rule))
	}

	numbers := regexp.MustCompile(numberPattern)

	return &lexicalExpander{
		speller:       speller,
		isCanonical:   isCanonical,
		abbreviations: abbreviations,
		numbers:       numbers,
		groups: numberGroups{
			ordinal:       numbers.SubexpIndex("ordinal"),
			ordinalDigits: numbers.SubexpIndex("ordinalDigits"),
			ordinalSuffix: numbers.SubexpIndex("ordinalSuffix"),
			money:         numbers.SubexpIndex("money"),
			moneyDigits:   numbers.SubexpIndex("moneyDigits"),
			grouped:       numbers.SubexpIndex("grouped"),
			numberRange:   numbers.SubexpIndex("range"),
			rangeFrom:     numbers.SubexpIndex("rangeFrom"),
			rangeTo:       numbers.SubexpIndex("rangeTo"),
		},
	}
}

// compileAbbreviation turns a rule into a case-insensitive matcher.
//
// A form ending in a period must be followed by whitespace or the end of the
// line. Other forms must not touch a word rune on either side. AfterNumber
// rules also match the digit before the form and keep it.
func compileAbbreviation(rule AbbreviationRule) abbreviationMatcher {
	var pattern strings.Builder

	pattern.WriteString("(?i)")

	if rule.AfterNumber {
		pattern.WriteString(`(?P<digit>\d)[ \t]?`)
	}

	pattern.WriteString(regexp.QuoteMeta(rule.Form))

	first, _ := utf8.DecodeRuneInString(rule.Form)

	return abbreviationMatcher{
		pattern:     regexp.MustCompile(pattern.String()),
		expansion:   rule.Expansion,
		afterNumber: rule.AfterNumber,
		guardLead:   !rule.AfterNumber && isWordRune(first),
		periodForm:  strings.HasSuffix(rule.Form, periodSuffix),
	}
}

// replace rewrites every bounded occurrence of the form in line.
func (m abbreviationMatcher) replace(line string) string {
	var builder strings.Builder

	last := 0

	for _, loc := range m.pattern.FindAllStringSubmatchIndex(line, -1) {
		start, end := loc[0], loc[1]
		if !m.bounded(line, start, end) {
			continue
		}

		builder.WriteString(line[last:start])

		if m.afterNumber {
			builder.WriteString(line[loc[2]:loc[3]])
			builder.WriteString(singleSpace)
		}

		builder.WriteString(m.expansion)

		last = end
	}

	if last == 0 {
		return line
	}

	builder.WriteString(line[last:])

	return builder.String()
}

func (m abbreviationMatcher) bounded(line string, start, end int) bool {
	if m.guardLead && wordBefore(line, start) {
		return false
	}

	if !m.periodForm {
		return !wordAfter(line, end)
	}

	if end == len(line) {
		return true
	}

	next, _ := utf8.DecodeRuneInString(line[end:])

	return unicode.IsSpace(next)
}

// isWordRune is the Unicode version of the \w class.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func wordBefore(line string, offset int) bool {
	if offset == 0 {
		return false
	}

	previous, _ := utf8.DecodeLastRuneInString(line[:offset])

	return isWordRune(previous)
}

func wordAfter(line string, offset int) bool {
	if offset >= len(line) {
		return false
	}

	next, _ := utf8.DecodeRuneInString(line[offset:])

	return isWordRune(next)
}

// expand rewrites every line except canonical chapter headings, whose
// numbers must stay as digits.
func (e *lexicalExpander) expand(text string) string {
	lines := strings.Split(text, lineBreak)

	for index, line := range lines {
		if strings.TrimSpace(line) == "" || e.isCanonical(strings.TrimSpace(line)) {
			continue
		}

		lines[index] = e.expandLine(line)
	}

	return strings.Join(lines, lineBreak)
}

func (e *lexicalExpander) expandLine(line string) string {
	for _, abbreviation := range e.abbreviations {
		line = abbreviation.replace(line)
	}

	return e.expandNumbers(line)
}

// expandNumbers spells each numeric span that stands apart from surrounding
// words. A span the speller cannot handle is copied unchanged.
func (e *lexicalExpander) expandNumbers(line string) string {
	var builder strings.Builder

	last := 0

	for _, loc := range e.numbers.FindAllStringSubmatchIndex(line, -1) {
		start, end := loc[0], loc[1]
		if wordBefore(line, start) || wordAfter(line, end) {
			continue
		}

		builder.WriteString(line[last:start])
		builder.WriteString(e.spellNumber(line, loc))

		last = end
	}

	if last == 0 {
		return line
	}

	builder.WriteString(line[last:])

	return builder.String()
}

func (e *lexicalExpander) spellNumber(line string, loc []int) string {
	group := func(index int) string {
		if index < 0 || loc[2*index] < 0 {
			return ""
		}

		return line[loc[2*index]:loc[2*index+1]]
	}

	match := line[loc[0]:loc[1]]

	switch {
	case group(e.groups.ordinal) != "":
		return e.expandOrdinal(match, group(e.groups.ordinalDigits), group(e.groups.ordinalSuffix))
	case group(e.groups.money) != "":
		return e.expandMoney(match, group(e.groups.moneyDigits))
	case group(e.groups.grouped) != "":
		return e.expandGroupedNumber(match)
	case group(e.groups.numberRange) != "":
		return e.expandRange(match, group(e.groups.rangeFrom), group(e.groups.rangeTo))
	default:
		words, _ := e.cardinalWords(match)

		return words
	}
}

func (e *lexicalExpander) expandOrdinal(match, digits, suffix string) string {
	number, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return match
	}

	words, err := e.speller.Ordinal(number)
	if err != nil {
		return match
	}

	if strings.ContainsAny(suffix, feminineSuffixes) {
		words = feminineOrdinal(words)
	}

	return words
}

// feminineOrdinal swaps the final "o" of the masculine form for "a". Only
// the last word changes ("vigésimo primeira"), which is accepted as is.
func feminineOrdinal(masculine string) string {
	if !strings.HasSuffix(masculine, masculineEnding) {
		return masculine
	}

	return strings.TrimSuffix(masculine, masculineEnding) + feminineEnding
}

func (e *lexicalExpander) expandMoney(match, digits string) string {
	words, ok := e.spell(strings.ReplaceAll(digits, thousandsMark, ""))
	if !ok {
		return match
	}

	return words + currencyWord
}

func (e *lexicalExpander) expandGroupedNumber(match string) string {
	words, ok := e.spell(strings.ReplaceAll(match, thousandsMark, ""))
	if !ok {
		return match
	}

	return words
}

// expandRange spells both bounds, or keeps the whole range as written when
// either bound cannot be spelled.
func (e *lexicalExpander) expandRange(match, from, to string) string {
	fromWords, fromOK := e.cardinalWords(from)
	toWords, toOK := e.cardinalWords(to)

	if !fromOK || !toOK {
		return match
	}

	return fromWords + rangeConnector + toWords
}

// cardinalWords spells a bare integer. Years come back as digits with ok set;
// identifiers and numbers the speller rejects come back as digits without it.
func (e *lexicalExpander) cardinalWords(token string) (string, bool) {
	if len(token) > maxCardinalDigits {
		return token, false
	}

	number, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return token, false
	}

	if len(token) == yearDigits && number >= yearMin && number <= yearMax {
		return token, true
	}

	words, ok := e.spell(token)
	if !ok {
		return token, false
	}

	return words, true
}

func (e *lexicalExpander) spell(digits string) (string, bool) {
	number, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return "", false
	}

	words, err := e.speller.Cardinal(number)
	if err != nil {
		return "", false
	}

	return words, true
}
