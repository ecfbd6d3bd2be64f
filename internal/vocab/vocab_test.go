package vocab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeList(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.csv")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_CanonicalForm(t *testing.T) {
	t.Parallel()
	path := writeList(t, "Apple\napple\nBanana\n")

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := `["apple","banana","[unk]"]`
	if v.JSON != want {
		t.Errorf("JSON = %s, want %s", v.JSON, want)
	}
	if v.Size != 3 {
		t.Errorf("Size = %d, want 3", v.Size)
	}
}

func TestLoad_SortsAndDeduplicates(t *testing.T) {
	t.Parallel()
	path := writeList(t, "zebra\nmango\nzebra\nMANGO\naardvark\n")

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := `["aardvark","mango","zebra","[unk]"]`
	if v.JSON != want {
		t.Errorf("JSON = %s, want %s", v.JSON, want)
	}
}

func TestLoad_SkipsMultiLineCells(t *testing.T) {
	t.Parallel()
	path := writeList(t, "\"two\nlines\"\nsingle\n")

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Contains(v.JSON, "two") {
		t.Errorf("multi-line cell should be skipped, got %s", v.JSON)
	}
	if !strings.Contains(v.JSON, "single") {
		t.Errorf("single-line cell missing from %s", v.JSON)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_RuntimeOverride(t *testing.T) {
	t.Parallel()
	v, err := Parse(`["Jambo", "habari", "JAMBO"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := `["habari","jambo","[unk]"]`
	if v.JSON != want {
		t.Errorf("JSON = %s, want %s", v.JSON, want)
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()
	if _, err := Parse(`{"not": "an array"}`); err == nil {
		t.Error("expected error for non-array payload")
	}
	if _, err := Parse(`[1, 2, 3]`); err == nil {
		t.Error("expected error for non-string elements")
	}
}

func TestCanonicalize_SentinelNotDuplicated(t *testing.T) {
	t.Parallel()
	v, err := Parse(`["[unk]", "word"]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Count(v.JSON, Sentinel) != 1 {
		t.Errorf("sentinel should appear exactly once: %s", v.JSON)
	}
}
