package local

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relevance.json")
	content := `{
		"Gout": [
			{"path": "docs/gout_overview.md", "score": 12.5},
			{"path": "docs/gout_treatment.md", "score": 9.1}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	docs := idx.Docs("Gout")
	if len(docs) != 2 || docs[0].Path != "docs/gout_overview.md" {
		t.Errorf("Docs() = %+v", docs)
	}
	if idx.Docs("Unknown") != nil {
		t.Error("Docs() for unknown condition should be nil")
	}
}

func TestLoadIndexMissingFile(t *testing.T) {
	idx, err := LoadIndex(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadIndex() error = %v, want nil for missing file", err)
	}
	if idx != nil {
		t.Errorf("LoadIndex() = %v, want nil index", idx)
	}
}

func TestLoadIndexMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIndex(path); err == nil {
		t.Error("LoadIndex() should fail on malformed JSON")
	}
}

func TestTopDocs(t *testing.T) {
	docs := []Doc{
		{Path: "a/low.md", Score: 1},
		{Path: "a/high.md", Score: 10},
		{Path: "b/high.md", Score: 10}, // same basename+score as a dup from another dir
		{Path: "a/mid.md", Score: 5},
		{Path: "", Score: 99},
	}

	top := TopDocs(docs, 2)
	if len(top) != 2 {
		t.Fatalf("TopDocs() kept %d, want 2", len(top))
	}
	if top[0].Path != "a/high.md" || top[1].Path != "a/mid.md" {
		t.Errorf("TopDocs() = %+v", top)
	}
}

func TestTopDocsDefaultLimit(t *testing.T) {
	var docs []Doc
	for i := 0; i < 10; i++ {
		docs = append(docs, Doc{Path: filepath.Join("d", string(rune('a'+i))+".md"), Score: float64(i)})
	}
	if got := TopDocs(docs, 0); len(got) != DefaultTopDocs {
		t.Errorf("TopDocs() kept %d, want %d", len(got), DefaultTopDocs)
	}
}

func TestReadSources(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.md")
	two := filepath.Join(dir, "two.md")
	if err := os.WriteFile(one, []byte("# First\n\nBody one.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(two, []byte("# Second\n\nBody two.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs := []Doc{
		{Path: one, Score: 2},
		{Path: filepath.Join(dir, "missing.md"), Score: 1.5},
		{Path: two, Score: 1},
	}

	got := ReadSources(docs, nil)
	want := "# First\n\nBody one.\n\n# Second\n\nBody two."
	if got != want {
		t.Errorf("ReadSources() = %q, want %q", got, want)
	}
}
