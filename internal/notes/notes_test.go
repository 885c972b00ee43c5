package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownPassesPlainMarkdown(t *testing.T) {
	body := "## Fixes\r\n\r\n- faster sorting\r\n- `_V0` default\r\n"
	assert.Equal(t, "## Fixes\n\n- faster sorting\n- `_V0` default", Markdown(body))
}

func TestMarkdownFoldsHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line break", "first<br>second", "first\nsecond"},
		{"link", `see <a href="https://example.com/x">the log</a>`, "see [the log](https://example.com/x)"},
		{"anchor link", `<a href="#top">top</a>`, "[top]"},
		{"bold", "<b>breaking</b> change", "**breaking** change"},
		{"image alt", `<img src="x.png" alt="screenshot"> done`, "[screenshot] done"},
		{"script dropped", "ok<script>alert(1)</script>", "ok"},
		{"comment dropped", "a<!-- hidden -->b", "ab"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "- one\n- two"},
		{"details", "<details><summary>More</summary>body</details>", "**More**\n\nbody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Markdown(tt.in))
		})
	}
}

func TestMarkdownKeepsSurroundingMarkdown(t *testing.T) {
	got := Markdown("## Changes\n\n- sort by thickness<br>\n- new *updater*")
	assert.True(t, strings.HasPrefix(got, "## Changes\n\n- sort by thickness\n"), got)
	assert.Contains(t, got, "- new *updater*")
}

func TestPlain(t *testing.T) {
	got := Plain("## Fixes\n\n**Breaking**: rename `x`")
	assert.Equal(t, "Fixes\n\nBreaking: rename x", got)
}

func TestGeneratedReleaseBodyDropsComment(t *testing.T) {
	body := "<!-- Release notes generated using configuration in .github/release.yml -->\n\n## What's Changed\n* fix sort"

	md := Markdown(body)
	assert.Equal(t, "## What's Changed\n* fix sort", md)
	assert.NotContains(t, Plain(body), "<!--")
	assert.NotContains(t, NewRenderer("notty", 60).Render(body), "Release notes generated")
}

func TestRender(t *testing.T) {
	r := NewRenderer("notty", 40)
	out := r.Render("## Fixes\n\n- faster sorting of sheets by material thickness")

	assert.Contains(t, out, "Fixes")
	assert.Contains(t, out, "faster sorting")
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " ")
		assert.LessOrEqual(t, len([]rune(line)), 40, line)
	}

	assert.Empty(t, r.Render("   "))
	assert.Equal(t, DefaultWidth, NewRenderer("", 0).width)
}
