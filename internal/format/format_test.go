package format

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTelegramHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "✅ Reminder set!\n\n📝 **Call mom**", "✅ Reminder set!\n\n📝 <b>Call mom</b>"},
		{"italic and code", "*soon* `x<y`", "<i>soon</i> <code>x&lt;y</code>"},
		{"escape", "Tom & Jerry <3", "Tom &amp; Jerry &lt;3"},
		{"heading", "# Daily Report", "<b>Daily Report</b>"},
		{"bullets", "- one\n- two", "• one\n• two"},
		{"ordered", "1. one\n2. two", "1. one\n2. two"},
		{"link", "[site](https://example.com)", `<a href="https://example.com">site</a>`},
		{"soft break", "line one\nline two", "line one\nline two"},
		{"code block", "```go\nx := 1\n```", `<pre><code class="language-go">x := 1</code></pre>`},
		{"raw html escaped", "a <b>b</b>", "a &lt;b&gt;b&lt;/b&gt;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TelegramHTML(tt.in); got != tt.want {
				t.Errorf("TelegramHTML(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	if got := Split("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short message: %q", got)
	}
	if got := Split("   ", 100); got != nil {
		t.Errorf("blank message: %q", got)
	}

	para := strings.Repeat("a", 60)
	got := Split(para+"\n\n"+para+"\n\n"+para, 130)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(got), got)
	}
	if got[0] != para+"\n\n"+para {
		t.Errorf("first chunk should keep two paragraphs")
	}

	long := strings.Repeat("é", 250)
	got = Split(long, 100)
	if len(got) != 3 {
		t.Fatalf("hard cut chunks = %d, want 3", len(got))
	}
	for _, c := range got {
		if utf8.RuneCountInString(c) > 100 {
			t.Errorf("chunk over limit: %d runes", utf8.RuneCountInString(c))
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total int
		want        string
	}{
		{3, 5, "▓▓▓░░ 60%"},
		{0, 0, "░░░░░ 0%"},
		{7, 5, "▓▓▓▓▓ 100%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.done, tt.total, 5); got != tt.want {
			t.Errorf("ProgressBar(%d, %d) = %q, want %q", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(30 * time.Second), "now"},
		{now.Add(time.Minute), "in 1 minute"},
		{now.Add(3 * time.Hour), "in 3 hours"},
		{now.Add(-49 * time.Hour), "2 days ago"},
	}
	for _, tt := range tests {
		if got := RelativeTime(tt.t, now); got != tt.want {
			t.Errorf("RelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTruncateAndDecorate(t *testing.T) {
	if got := Truncate("buy groceries for the week", 10); got != "buy gro..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Decorate("task", "x"); got != "📝 x" {
		t.Errorf("Decorate = %q", got)
	}
	if got := Decorate("nope", "x"); got != "x" {
		t.Errorf("Decorate unknown = %q", got)
	}
}
