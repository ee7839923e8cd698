package content

import (
	"strings"
	"testing"
)

func TestIndentJSON(t *testing.T) {
	got, err := IndentJSON([]byte(` {"id":"d1","elements":[1,2]} `))
	if err != nil {
		t.Fatalf("IndentJSON: %v", err)
	}
	want := "{\n  \"id\": \"d1\",\n  \"elements\": [\n    1,\n    2\n  ]\n}"
	if got != want {
		t.Fatalf("IndentJSON = %q, want %q", got, want)
	}

	if _, err := IndentJSON([]byte(`{"id":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestHighlightJSON(t *testing.T) {
	plain := NewSyntaxHighlighter("github", FormatterNoop)
	out, err := plain.HighlightJSON([]byte(`{"status":"ok"}`))
	if err != nil {
		t.Fatalf("HighlightJSON: %v", err)
	}
	if out != "{\n  \"status\": \"ok\"\n}" {
		t.Fatalf("noop formatter changed the text: %q", out)
	}

	colour := NewSyntaxHighlighter("monokai", FormatterTerminal256)
	out, err = colour.HighlightJSON([]byte(`{"status":"ok"}`))
	if err != nil {
		t.Fatalf("HighlightJSON: %v", err)
	}
	if !strings.Contains(out, "\x1b[") || !strings.Contains(out, "status") {
		t.Fatalf("expected ANSI highlighted output, got %q", out)
	}
}

func TestHighlightJSONInvalid(t *testing.T) {
	sh := NewSyntaxHighlighter("github", FormatterNoop)
	out, err := sh.HighlightJSON([]byte("not json"))
	if err == nil || out != "not json" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestSetTheme(t *testing.T) {
	sh := NewSyntaxHighlighter("github", FormatterNoop)
	if err := sh.SetTheme("monokai"); err != nil || sh.Theme() != "monokai" {
		t.Fatalf("SetTheme(monokai) = %v, theme %s", err, sh.Theme())
	}
	if err := sh.SetTheme("no-such-style"); err == nil {
		t.Fatal("unknown theme should fail")
	}
	if sh.Theme() != "monokai" {
		t.Fatal("failed SetTheme must keep the previous theme")
	}
}
