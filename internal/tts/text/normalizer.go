package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Paragraph layout.
const (
	lineBreak          = "\n"
	paragraphSeparator = "\n\n"
	paragraphSentinel  = "\ue000"
	singleSpace        = " "
	dialogueDash       = "—"
)

// Patterns used by the normalizer.
const (
	metadataLinePattern     = `(?m)^[ \t]*[\w-]+\.indd[ \t]+\d+[ \t]+\d{2}/\d{2}/\d{2,4}[ \t]+\d{1,2}:\d{2}(?::\d{2})?[ \t]*(?:[AP]M)?[ \t]*(?:\n|\z)`
	pageNumberLinePattern   = `(?m)^[ \t]*\d{1,4}[ \t]*(?:\n|\z)`
	keywordPattern          = `(?i)cap[ií]tulo`
	doubleQuoteRunPattern   = `"{2,}`
	singleQuoteRunPattern   = `'{2,}`
	emDashPattern           = `[ \t]*—[ \t]*`
	horizontalSpacePattern  = `[ \t]+`
	boldPattern             = `\*\*(.+?)\*\*`
	underscoreItalicPattern = `_([^_\n]+)_`
	asteriskItalicPattern   = `\*([^*\n]+)\*`
	strayMarkerPattern      = `[*_]`
	hyphenWrapPattern       = `(\pL)-[ \t]*\n[ \t]*(\pL)`
	lineEdgeSpacePattern    = `[ \t]*\n[ \t]*`
	blankLinePattern        = `\n{2,}`
	possessivePattern       = `(\pL)'s\b`
)

// normalizer canonicalizes raw extracted text: encoding artifacts, junk lines,
// punctuation glyphs, markdown emphasis and line-wrapped paragraphs.
type normalizer struct {
	boilerplate []string
	heading     func(line string) (isHeading, titled bool)

	lineEndings *strings.Replacer
	corrections *strings.Replacer
	glyphs      *strings.Replacer

	metadataLine     *regexp.Regexp
	pageNumberLine   *regexp.Regexp
	keyword          *regexp.Regexp
	doubleQuoteRun   *regexp.Regexp
	singleQuoteRun   *regexp.Regexp
	emDash           *regexp.Regexp
	horizontalSpace  *regexp.Regexp
	bold             *regexp.Regexp
	underscoreItalic *regexp.Regexp
	asteriskItalic   *regexp.Regexp
	strayMarker      *regexp.Regexp
	hyphenWrap       *regexp.Regexp
	lineEdgeSpace    *regexp.Regexp
	blankLine        *regexp.Regexp
	possessive       *regexp.Regexp
}

func newNormalizer(rules Rules, heading func(line string) (isHeading, titled bool)) *normalizer {
	var corrections *strings.Replacer

	if len(rules.Corrections) > 0 {
		pairs := make([]string, 0, 2*len(rules.Corrections))
		for _, correction := range rules.Corrections {
			pairs = append(pairs, correction.From, correction.To)
		}

		corrections = strings.NewReplacer(pairs...)
	}

	return &normalizer{
		boilerplate: rules.Boilerplate,
		heading:     heading,
		lineEndings: strings.NewReplacer("\r\n", lineBreak, "\r", lineBreak),
		corrections: corrections,
		glyphs: strings.NewReplacer(
			"“", `"`, "”", `"`, "«", `"`, "»", `"`, "„", `"`, "‟", `"`,
			"‘", "'", "’", "'", "‚", "'", "‛", "'",
			"–", "—", "―", "—", "‒", "—",
			"‐", "-", "‑", "-", // hyphens, not dashes
			"…", "...",
			";", ",",
		),
		metadataLine:     regexp.MustCompile(metadataLinePattern),
		pageNumberLine:   regexp.MustCompile(pageNumberLinePattern),
		keyword:          regexp.MustCompile(keywordPattern),
		doubleQuoteRun:   regexp.MustCompile(doubleQuoteRunPattern),
		singleQuoteRun:   regexp.MustCompile(singleQuoteRunPattern),
		emDash:           regexp.MustCompile(emDashPattern),
		horizontalSpace:  regexp.MustCompile(horizontalSpacePattern),
		bold:             regexp.MustCompile(boldPattern),
		underscoreItalic: regexp.MustCompile(underscoreItalicPattern),
		asteriskItalic:   regexp.MustCompile(asteriskItalicPattern),
		strayMarker:      regexp.MustCompile(strayMarkerPattern),
		hyphenWrap:       regexp.MustCompile(hyphenWrapPattern),
		lineEdgeSpace:    regexp.MustCompile(lineEdgeSpacePattern),
		blankLine:        regexp.MustCompile(blankLinePattern),
		possessive:       regexp.MustCompile(possessivePattern),
	}
}

func (n *normalizer) normalize(raw string) string {
	// Step 1: Encoding. The sentinel must never come from the input.
	text := strings.ReplaceAll(raw, paragraphSentinel, "")
	text = n.lineEndings.Replace(text)
	text = norm.NFC.String(text)

	if n.corrections != nil {
		text = n.corrections.Replace(text)
	}

	// Step 2: Junk removal
	text = n.removeBoilerplate(text)
	text = n.metadataLine.ReplaceAllString(text, "")
	text = n.pageNumberLine.ReplaceAllString(text, "")
	text = n.dropFrontMatter(text)

	// Step 3: Glyphs and emphasis
	text = n.foldPunctuation(text)
	text = n.stripMarkdown(text)

	// Step 4: Paragraphs
	text = n.hyphenWrap.ReplaceAllString(text, "${1}${2}")
	text = n.isolateHeadings(text)
	text = n.reassembleParagraphs(text)

	return n.possessive.ReplaceAllString(text, "${1}s")
}

func (n *normalizer) removeBoilerplate(text string) string {
	for _, fragment := range n.boilerplate {
		if fragment == "" {
			continue
		}

		text = strings.ReplaceAll(text, fragment, "")
	}

	return text
}

// dropFrontMatter cuts everything before the first chapter keyword, wherever
// it appears.
func (n *normalizer) dropFrontMatter(text string) string {
	location := n.keyword.FindStringIndex(text)
	if location == nil {
		return text
	}

	return text[location[0]:]
}

func (n *normalizer) foldPunctuation(text string) string {
	text = n.glyphs.Replace(text)
	text = n.doubleQuoteRun.ReplaceAllString(text, `"`)
	text = n.singleQuoteRun.ReplaceAllString(text, "'")
	text = n.emDash.ReplaceAllString(text, " — ")

	return n.horizontalSpace.ReplaceAllString(text, singleSpace)
}

// stripMarkdown removes emphasis markers. Bold goes first so that "**x**"
// is not read as two empty single-asterisk spans.
func (n *normalizer) stripMarkdown(text string) string {
	text = n.bold.ReplaceAllString(text, "${1}")
	text = n.underscoreItalic.ReplaceAllString(text, "${1}")
	text = n.asteriskItalic.ReplaceAllString(text, "${1}")

	return n.strayMarker.ReplaceAllString(text, "")
}

// isolateHeadings surrounds heading lines with blank lines so paragraph
// reassembly keeps them apart from the body. A heading without a title takes
// the next non-blank line as its title when that line reads like one.
func (n *normalizer) isolateHeadings(text string) string {
	lines := strings.Split(text, lineBreak)
	isolated := make([]string, 0, len(lines))

	for index := 0; index < len(lines); index++ {
		line := strings.TrimSpace(lines[index])

		isHeading, titled := n.heading(line)
		if !isHeading {
			isolated = append(isolated, lines[index])

			continue
		}

		if next := nextNonBlank(lines, index+1); !titled && next > 0 {
			joined := line + singleSpace + strings.TrimSpace(lines[next])

			if n.looksLikeTitle(strings.TrimSpace(lines[next])) && n.isHeadingLine(joined) {
				line = joined
				index = next
			}
		}

		isolated = append(isolated, lineBreak+line+lineBreak)
	}

	return strings.Join(isolated, lineBreak)
}

func (n *normalizer) isHeadingLine(line string) bool {
	isHeading, _ := n.heading(line)

	return isHeading
}

// nextNonBlank returns the index of the first non-blank line at or after
// from, or -1.
func nextNonBlank(lines []string, from int) int {
	for index := from; index < len(lines); index++ {
		if strings.TrimSpace(lines[index]) != "" {
			return index
		}
	}

	return -1
}

// looksLikeTitle accepts a short line that does not end a sentence and is
// neither dialogue nor another heading.
func (n *normalizer) looksLikeTitle(line string) bool {
	if line == "" || utf8.RuneCountInString(line) > maxTitleRunes {
		return false
	}

	if strings.HasPrefix(line, dialogueDash) || n.isHeadingLine(line) {
		return false
	}

	last, _ := utf8.DecodeLastRuneInString(line)

	return !isSentenceMark(last)
}

func (n *normalizer) reassembleParagraphs(text string) string {
	text = n.lineEdgeSpace.ReplaceAllString(text, lineBreak)
	text = n.blankLine.ReplaceAllString(text, paragraphSentinel)
	text = strings.ReplaceAll(text, lineBreak, singleSpace)
	text = strings.ReplaceAll(text, paragraphSentinel, paragraphSeparator)

	paragraphs := splitParagraphs(text)
	for index, paragraph := range paragraphs {
		paragraphs[index] = n.horizontalSpace.ReplaceAllString(paragraph, singleSpace)
	}

	return strings.Join(paragraphs, paragraphSeparator)
}

// splitParagraphs splits on blank lines and drops paragraphs that are empty
// after trimming.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, paragraphSeparator)
	paragraphs := make([]string, 0, len(raw))

	for _, paragraph := range raw {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph != "" {
			paragraphs = append(paragraphs, paragraph)
		}
	}

	return paragraphs
}
