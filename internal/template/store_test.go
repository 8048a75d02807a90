package template

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(dir, "email_template.html", logger), dir
}

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0640); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
}

func TestList(t *testing.T) {
	store, dir := testStore(t)

	writeTemplate(t, dir, "solar_intro.html", "<p>a</p>")
	writeTemplate(t, dir, "email_template.html", "<p>b</p>")
	writeTemplate(t, dir, "notes.txt", "not a template")

	names, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"email_template.html", "solar_intro.html"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestListMissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewStore(filepath.Join(t.TempDir(), "nope"), "email_template.html", logger)

	names, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if names != nil {
		t.Errorf("expected no templates, got %v", names)
	}
}

func TestRenderSubstitutesCustomMessage(t *testing.T) {
	store, dir := testStore(t)
	writeTemplate(t, dir, "solar_intro.html", "<p>{{custom_message}}</p><p>Hello {{name}}</p>")

	got := store.Render("solar_intro.html", "Save with community solar")
	if got != "<p>Save with community solar</p><p>Hello {{name}}</p>" {
		t.Errorf("unexpected render output: %s", got)
	}
}

func TestRenderDefaultTemplate(t *testing.T) {
	store, dir := testStore(t)
	writeTemplate(t, dir, "email_template.html", "<div>{{custom_message}}</div>")

	got := store.Render("", "hello")
	if got != "<div>hello</div>" {
		t.Errorf("unexpected render output: %s", got)
	}
}

func TestRenderFallsBackToBuiltin(t *testing.T) {
	store, _ := testStore(t)

	got := store.Render("missing.html", "custom text")
	if !strings.Contains(got, "custom text") {
		t.Errorf("built-in body missing custom message:\n%s", got)
	}
	if !strings.Contains(got, "{{name}}") {
		t.Errorf("built-in body should keep per-recipient placeholders:\n%s", got)
	}
}

func TestRenderStripsPathComponents(t *testing.T) {
	store, dir := testStore(t)
	writeTemplate(t, dir, "passwd", "secret")
	writeTemplate(t, dir, "email_template.html", "<p>{{custom_message}}</p>")

	// A traversal attempt resolves to its base name inside the directory.
	got := store.Render("../../etc/passwd", "x")
	if got != "secret" {
		// Base name "passwd" exists in the directory, so it is served.
		t.Errorf("expected base-name lookup, got: %s", got)
	}
}
