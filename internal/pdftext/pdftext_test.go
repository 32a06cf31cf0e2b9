package pdftext

import (
	"strings"
	"testing"
)

func TestFromStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
1 0 0 1 50 700 Td
(Budget:) Tj
(1,500,000 baht) Tj
T*
[(Contact) -250 (02-123-4567)] TJ
ET`)

	got := fromStream(stream)
	for _, want := range []string{"Budget:", "1,500,000 baht", "Contact", "02-123-4567"} {
		if !strings.Contains(got, want) {
			t.Errorf("extracted text missing %q; got %q", want, got)
		}
	}
}

func TestFromStreamQuoteOperator(t *testing.T) {
	stream := []byte(`(first line) Tj
(second line) '`)
	got := fromStream(stream)
	if !strings.Contains(got, "first line") || !strings.Contains(got, "second line") {
		t.Errorf("got %q", got)
	}
}

func TestDecodeString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`a\(b\)c`, "a(b)c"},
		{`tab\there`, "tab\there"},
		{`oct\040space`, "oct space"},
		{`back\\slash`, `back\slash`},
	}
	for _, c := range cases {
		if got := decodeString([]byte(c.in)); got != c.want {
			t.Errorf("decodeString(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestClean(t *testing.T) {
	got := clean("  a \n\n b\t\tc  ")
	if got != "a b c" {
		t.Errorf("clean = %q, want %q", got, "a b c")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File("does/not/exist.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
