package document

import (
	"regexp"
	"strings"
)

// identifyingPatterns matches the personally identifying header fields
// clinical labs print on reports. Values never span lines, so the name
// pattern stops at the newline instead of swallowing the next field.
var identifyingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Patient Name\s*:[ \t]*[A-Za-z .]+`),
	regexp.MustCompile(`Patient UID No\s*:\s*\w+`),
	regexp.MustCompile(`Age and Gender\s*:\s*\d+\s*Years\s*/\s*[A-Za-z]+`),
}

var (
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`\.\s`)
)

// Redact removes personally identifying fields from report text.
func Redact(text string) string {
	for _, re := range identifyingPatterns {
		text = re.ReplaceAllString(text, "")
	}
	text = blankLineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Prettify normalizes whitespace and breaks the text into readable
// sentence-per-paragraph form.
func Prettify(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = sentenceRe.ReplaceAllString(text, ".\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
