package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	spaceBeforePunctuationPattern = `[ \t]+([,.!?;:])`
	missingSpacePattern           = `([,.!?;:])(\pL)`
	dialogueBreakPattern          = `([.!?])[ \t]+—[ \t]*`
	repeatedSpacePattern          = `[ \t]{2,}`
	excessBlankLinesPattern       = `\n{3,}`
)

const (
	paragraphTrimCutset = ",;:—- \t"
	terminalMarks       = ".!?"
	fullStop            = "."
)

type cleaner struct {
	isCanonical func(line string) bool

	spaceBeforePunctuation *regexp.Regexp
	missingSpace           *regexp.Regexp
	dialogueBreak          *regexp.Regexp
	repeatedSpace          *regexp.Regexp
	lineEdgeSpace          *regexp.Regexp
	excessBlankLines       *regexp.Regexp
}

func newCleaner(isCanonical func(line string) bool) *cleaner {
	return &cleaner{
		isCanonical:            isCanonical,
		spaceBeforePunctuation: regexp.MustCompile(spaceBeforePunctuationPattern),
		missingSpace:           regexp.MustCompile(missingSpacePattern),
		dialogueBreak:          regexp.MustCompile(dialogueBreakPattern),
		repeatedSpace:          regexp.MustCompile(repeatedSpacePattern),
		lineEdgeSpace:          regexp.MustCompile(lineEdgeSpacePattern),
		excessBlankLines:       regexp.MustCompile(excessBlankLinesPattern),
	}
}

// clean fixes spacing around punctuation, gives every dialogue line its own
// paragraph and makes sure each paragraph ends like a sentence.
func (c *cleaner) clean(text string) string {
	text = c.spaceBeforePunctuation.ReplaceAllString(text, "${1}")
	text = c.missingSpace.ReplaceAllString(text, "${1} ${2}")
	text = c.dialogueBreak.ReplaceAllString(text, "${1}"+paragraphSeparator+"— ")
	text = c.repeatedSpace.ReplaceAllString(text, singleSpace)
	text = c.lineEdgeSpace.ReplaceAllString(text, lineBreak)
	text = c.excessBlankLines.ReplaceAllString(text, paragraphSeparator)

	paragraphs := splitParagraphs(text)
	kept := make([]string, 0, len(paragraphs))

	for _, paragraph := range paragraphs {
		if c.isCanonical(paragraph) {
			kept = append(kept, paragraph)

			continue
		}

		paragraph = strings.TrimSpace(strings.TrimRight(paragraph, paragraphTrimCutset))
		if paragraph == "" {
			continue
		}

		kept = append(kept, terminate(paragraph))
	}

	return strings.Join(kept, paragraphSeparator)
}

// terminate appends a full stop unless the paragraph already ends with a
// terminal mark. A closing quote is not a terminal mark.
func terminate(paragraph string) string {
	last, _ := utf8.DecodeLastRuneInString(paragraph)
	if strings.ContainsRune(terminalMarks, last) {
		return paragraph
	}

	return paragraph + fullStop
}
