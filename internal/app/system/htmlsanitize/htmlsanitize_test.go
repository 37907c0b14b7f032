package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/mewsorg/mews/internal/app/system/htmlsanitize"
)

func TestSanitize_Keeps(t *testing.T) {
	cases := []string{
		"",
		"Meeting on Sunday",
		"<p><strong>Bold</strong> and <em>italic</em></p>",
		"<ul><li>Rice</li><li>Dal</li></ul>",
		"<h2>Notice</h2>",
		"<blockquote>A quote</blockquote>",
	}
	for _, in := range cases {
		if got := htmlsanitize.Sanitize(in); got != in {
			t.Errorf("Sanitize(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestSanitize_Strips(t *testing.T) {
	cases := []struct {
		in, banned string
	}{
		{"<p>Hello</p><script>alert('x')</script>", "<script"},
		{`<button onclick="alert('x')">Click</button>`, "onclick"},
		{`<a href="javascript:alert('x')">Click</a>`, "javascript:"},
		{`<p>Body</p><iframe src="https://evil.example"></iframe>`, "iframe"},
		{`<img src="x" onerror="alert('x')">`, "onerror"},
		{`<img src="data:text/html,<script>alert('x')</script>">`, "data:text/html"},
		{`<form action="/submit"><input type="text"></form>`, "<input"},
	}
	for _, c := range cases {
		if got := htmlsanitize.Sanitize(c.in); strings.Contains(got, c.banned) {
			t.Errorf("Sanitize(%q) = %q, still contains %q", c.in, got, c.banned)
		}
	}
}

func TestSanitize_TableAttributes(t *testing.T) {
	got := htmlsanitize.Sanitize(`<table class="grid"><tr><td colspan="2" style="text-align:center">Cell</td></tr></table>`)
	for _, want := range []string{`class="grid"`, `colspan="2"`, "style="} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s kept, got %q", want, got)
		}
	}
}

func TestPrepareBody(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  Line 1\nLine 2 ", "<p>Line 1<br>Line 2</p>"},
		{"A & B", "<p>A &amp; B</p>"},
		{"5 < 10", "<p>5 &lt; 10</p>"},
		{"<p>Hi</p><script>x</script>", "<p>Hi</p>"},
	}
	for _, c := range cases {
		if got := htmlsanitize.PrepareBody(c.in); got != c.want {
			t.Errorf("PrepareBody(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
