package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only spaces", "   \t\n ", ""},
		{"collapse runs", "Spring   Fair\n\t2026", "Spring Fair 2026"},
		{"trim", "  Lecture  ", "Lecture"},
		{"nbsp is whitespace after nfkc", "Open\u00a0House", "Open House"},
		{"fullwidth letters", "ＡＢＣ", "ABC"},
		{"ligature", "ﬁnal", "final"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWhitespace(tt.input))
		})
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"within bound", "hello", 10, "hello"},
		{"exact bound", "hello", 5, "hello"},
		{"truncates", "hello world", 5, "hello"},
		{"multibyte counted as one", "héllo", 2, "hé"},
		{"emoji not split", "ab😀cd", 3, "ab😀"},
		{"zero disables", "hello", 0, "hello"},
		{"empty", "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Just text", "Just text"},
		{"tags removed", "<p>Join <b>us</b> at <a href=\"https://x.test\">EMU</a></p>", "Join us at EMU"},
		{"script body dropped", "Hi<script>alert(1)</script>", "Hi"},
		{"entities decoded", "Tea &amp; cookies", "Tea & cookies"},
		{"attributes gone", "<span onclick=\"evil()\">ok</span>", "ok"},
		{"encoded script", "Hi &lt;script&gt;alert(1)&lt;/script&gt;", "Hi "},
		{"encoded img handler", "&lt;img src=x onerror=alert(1)&gt;Lunch", "Lunch"},
		{"double encoded script", "&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;", ""},
		{"fullwidth delimiters", "\uff1cscript\uff1ealert(1)\uff1c/script\uff1e", ""},
		{"stray delimiter", "Ages 5 &lt; 10", "Ages 5  10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestCleanHTML(t *testing.T) {
	got := CleanHTML(`<p>Hello <strong>there</strong><img src="x.png"><a href="javascript:alert(1)">bad</a><a href="https://uoregon.edu" title="UO">good</a></p>`)

	assert.Contains(t, got, "<strong>there</strong>")
	assert.Contains(t, got, `href="https://uoregon.edu"`)
	assert.NotContains(t, got, "<img")
	assert.NotContains(t, got, "javascript:")
}

func TestCleanText_NoMarkupSurvives(t *testing.T) {
	inputs := []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&amp;lt;img src=x onerror=alert(1)&amp;gt;",
		"&amp;amp;lt;b onmouseover=alert(1)&amp;amp;gt;x",
		"<scr<script>ipt>alert(1)</script>",
	}

	for _, in := range inputs {
		got := CleanText(in)
		assert.NotContains(t, got, "<", in)
		assert.NotContains(t, got, ">", in)
	}
}

func TestText(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 400) + "</p>"

	got := Text(long, 1000)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 1000)
	assert.False(t, strings.HasSuffix(got, " "))
	assert.NotContains(t, got, "<p>")
	assert.Equal(t, "", Text("", 1000))
}

func TestText_BoundAfterNormalization(t *testing.T) {
	// U+FDFA expands to 18 code points under NFKC.
	got := Text(strings.Repeat("\ufdfa", 1000), 1000)

	assert.LessOrEqual(t, utf8.RuneCountInString(got), 1000)
	assert.NotEmpty(t, got)
}

func TestRichText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
	}{
		{"cut inside attribute", `<a href="https://uoregon.edu/events" title="` + strings.Repeat("x", 80) + `">link</a>`, 40},
		{"cut inside tag name", strings.Repeat("a", 38) + "<strong>bold</strong>", 40},
		{"expanding text", strings.Repeat("\ufdfa", 100) + "<b>x</b>", 200},
		{"escaped text grows", strings.Repeat("&", 100), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RichText(tt.input, tt.maxLen)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.maxLen)
			assert.Equal(t, got, collapse(CleanHTML(got)), "output must already be clean")
		})
	}

	assert.Equal(t, "<b>short</b>", RichText("<b>short</b>", 100))
}
