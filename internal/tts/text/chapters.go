package text

import (
	"cmp"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Heading patterns. Every rule is anchored to the whole trimmed line: the
// keyword, whitespace, the numbering token, then either the end of the line or
// a separator/whitespace followed by the title.
const (
	headingKeywordPattern   = `(?i)^(?:cap[ií]tulo|cap\.)[ \t]+`
	headingTailPattern      = `(?:(?:[ \t]*[:.—-][ \t]*|[ \t]+)(.*))?$`
	arabicNumeralPattern    = `(\d+)`
	romanNumeralPattern     = `([ivxlcdm]+)`
	canonicalHeadingPattern = `^CAPÍTULO [^\s.]+\.$`
)

const (
	canonicalHeadingPrefix = "CAPÍTULO "
	titleTrimCutset        = " ."
	maxTitleRunes          = 120
)

// headingRule recognizes one numbering scheme and turns its token into the
// number printed in the canonical heading.
type headingRule struct {
	name    string
	pattern *regexp.Regexp
	numeral func(token string) string
}

type chapterHeading struct {
	number string
	title  string
}

// String renders the canonical block, surrounded by blank lines.
func (h chapterHeading) String() string {
	var builder strings.Builder

	builder.WriteString(paragraphSeparator)
	builder.WriteString(canonicalHeadingPrefix)
	builder.WriteString(h.number)
	builder.WriteString(".")
	builder.WriteString(paragraphSeparator)

	if h.title != "" {
		builder.WriteString(h.title)
		builder.WriteString(paragraphSeparator)
	}

	return builder.String()
}

type chapterFormatter struct {
	rules     []headingRule
	canonical *regexp.Regexp
}

func newChapterFormatter(numerals map[string]string) *chapterFormatter {
	rules := []headingRule{
		{
			name:    "arabic",
			pattern: compileHeadingRule(arabicNumeralPattern),
			numeral: func(token string) string { return token },
		},
	}

	if len(numerals) > 0 {
		rules = append(rules, headingRule{
			name:    "cardinal",
			pattern: compileHeadingRule(cardinalAlternation(numerals)),
			numeral: func(token string) string {
				upper := strings.ToUpper(token)
				if digits, ok := numerals[upper]; ok {
					return digits
				}

				return upper
			},
		})
	}

	rules = append(rules, headingRule{
		name:    "roman",
		pattern: compileHeadingRule(romanNumeralPattern),
		numeral: strings.ToUpper,
	})

	return &chapterFormatter{
		rules:     rules,
		canonical: regexp.MustCompile(canonicalHeadingPattern),
	}
}

func compileHeadingRule(numeralPattern string) *regexp.Regexp {
	return regexp.MustCompile(headingKeywordPattern + numeralPattern + headingTailPattern)
}

// cardinalAlternation builds "(DEZESSEIS|DEZOITO|...|UM)". Longer words come
// first so a prefix such as DEZ never shadows DEZESSEIS.
func cardinalAlternation(numerals map[string]string) string {
	words := slices.SortedFunc(maps.Keys(numerals), func(a, b string) int {
		if byLength := cmp.Compare(len(b), len(a)); byLength != 0 {
			return byLength
		}

		return strings.Compare(a, b)
	})

	quoted := make([]string, len(words))
	for index, word := range words {
		quoted[index] = regexp.QuoteMeta(word)
	}

	return "(" + strings.Join(quoted, "|") + ")"
}

// match tries the rules in priority order against one trimmed line. The first
// rule whose pattern matches decides; an implausible title rejects the line.
func (f *chapterFormatter) match(line string) (chapterHeading, bool) {
	for _, rule := range f.rules {
		groups := rule.pattern.FindStringSubmatch(line)
		if groups == nil {
			continue
		}

		title := strings.TrimSpace(strings.TrimRight(groups[2], titleTrimCutset))
		if !plausibleTitle(title) {
			return chapterHeading{}, false
		}

		return chapterHeading{number: rule.numeral(groups[1]), title: titleCase(title)}, true
	}

	return chapterHeading{}, false
}

// headingLine reports whether line is a heading and whether it has a title.
func (f *chapterFormatter) headingLine(line string) (isHeading, titled bool) {
	heading, ok := f.match(line)

	return ok, heading.title != ""
}

func (f *chapterFormatter) isCanonical(line string) bool {
	return f.canonical.MatchString(line)
}

// format rewrites every heading line into its canonical block and leaves all
// other lines untouched.
func (f *chapterFormatter) format(text string) string {
	lines := strings.Split(text, lineBreak)

	for index, line := range lines {
		heading, ok := f.match(strings.TrimSpace(line))
		if ok {
			lines[index] = heading.String()
		}
	}

	return strings.Join(lines, lineBreak)
}

// plausibleTitle rejects titles that read like prose: too long, or holding a
// sentence break.
func plausibleTitle(title string) bool {
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return false
	}

	for _, sentenceBreak := range []string{". ", "! ", "? "} {
		if strings.Contains(title, sentenceBreak) {
			return false
		}
	}

	return true
}

// titleCase capitalizes each word, keeping acronyms as written.
func titleCase(title string) string {
	if title == "" {
		return ""
	}

	caser := cases.Title(language.BrazilianPortuguese)
	words := strings.Fields(title)

	for index, word := range words {
		if isAcronym(word) {
			continue
		}

		words[index] = caser.String(word)
	}

	return strings.Join(words, singleSpace)
}

func isAcronym(word string) bool {
	return utf8.RuneCountInString(word) > 1 &&
		strings.ToUpper(word) == word &&
		strings.ToLower(word) != word
}
