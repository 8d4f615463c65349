package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	basicPolicy = newBasicPolicy()
)

// newBasicPolicy allows the inline formatting accepted on the interactive
// submission path. Links are limited to http, https and mailto.
func newBasicPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "u", "em", "strong", "a", "p", "br", "ul", "ol", "li")
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	return p
}

// NormalizeWhitespace applies NFKC normalization, collapses whitespace runs
// to a single space and trims both ends.
func NormalizeWhitespace(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Clip truncates s to at most maxLen code points.
// A non-positive maxLen disables clipping.
func Clip(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i]
		}
		n++
	}
	return s
}

// cleanRounds bounds the sanitize and unescape loop in CleanText. Each round
// peels one layer of entity encoding.
const cleanRounds = 4

var delimiters = strings.NewReplacer("<", "", ">", "")

// CleanText removes every tag and attribute and returns plain text.
// Script and style bodies are dropped along with their tags. Entity-encoded
// markup is decoded and stripped again until the text stops changing, and any
// delimiter left after the last round is removed.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	for range cleanRounds {
		next := html.UnescapeString(stripPolicy.Sanitize(norm.NFKC.String(s)))
		if next == s {
			break
		}
		s = next
	}
	return delimiters.Replace(s)
}

// CleanHTML keeps the basic formatting allowlist and strips everything else.
// Text is NFKC normalized first so compatibility forms of the delimiters are
// escaped like the ASCII ones.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	return basicPolicy.Sanitize(norm.NFKC.String(s))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text is the pipeline for plain free text: strip markup, normalize, then
// clip to maxLen code points.
func Text(s string, maxLen int) string {
	return strings.TrimRight(Clip(collapse(CleanText(s)), maxLen), " ")
}

// RichText keeps the formatting allowlist and bounds the result to maxLen code
// points. The input is clipped before sanitizing and shortened until the
// output fits, so a cut never leaves a broken tag behind.
func RichText(s string, maxLen int) string {
	out := collapse(CleanHTML(s))
	if maxLen <= 0 {
		return out
	}
	cut := utf8.RuneCountInString(s)
	for n := utf8.RuneCountInString(out); n > maxLen; n = utf8.RuneCountInString(out) {
		next := cut * maxLen / n
		if next >= cut {
			next = cut - 1
		}
		if next <= 0 {
			return ""
		}
		cut = next
		out = collapse(CleanHTML(Clip(s, cut)))
	}
	return out
}
