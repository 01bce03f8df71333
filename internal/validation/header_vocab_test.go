package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const vocabSource = `package header

const (
	KeyObsID   = "OBSID"
	KeyBackend = "BACKEND"
	PrefixPrev = "PRV"
)
`

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vocabulary.go", vocabSource)

	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	if vocab.Keywords["OBSID"] != "KeyObsID" {
		t.Fatalf("OBSID mapped to %q", vocab.Keywords["OBSID"])
	}
	if !vocab.Constants["PrefixPrev"] {
		t.Fatalf("PrefixPrev not collected")
	}
}

func TestLoadVocabularyRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "vocabulary.go", `package header

const (
	KeyObsID    = "OBSID"
	KeyObsIDAlt = "OBSID"
)
`)
	if _, err := LoadVocabulary(path); err == nil || !strings.Contains(err.Error(), "declared by both") {
		t.Fatalf("expected duplicate keyword error, got %v", err)
	}
}

func TestValidateHeaderVocabulary(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "internal/header/vocabulary.go", vocabSource)
	writeFile(t, dir, "internal/header/fields.go", `package header

func read(r Raw) {
	r.str(KeyObsID)
	r.str("BACKEND")
	r.float("SEEINGST")
}
`)
	writeFile(t, dir, "internal/header/fields_test.go", `package header

func helper(r Raw) {
	r.str("TESTONLY")
}
`)

	violations, err := ValidateHeaderVocabularyFromFile(vocabPath, dir, []string{"internal/header"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(violations), violations)
	}
	if !strings.Contains(violations[0].Message, "use the declared constant KeyBackend") {
		t.Fatalf("unexpected first violation: %+v", violations[0])
	}
	if !strings.Contains(violations[1].Message, `"SEEINGST" is not declared`) {
		t.Fatalf("unexpected second violation: %+v", violations[1])
	}
	for _, v := range violations {
		if strings.HasSuffix(v.File, "_test.go") {
			t.Fatalf("test files must be skipped: %+v", v)
		}
	}
}

func TestValidateHeaderVocabularyAgainstRepository(t *testing.T) {
	base := repositoryRoot(t)
	vocabPath := filepath.Join(base, "internal", "ingest", "header", "vocabulary.go")

	violations, err := ValidateHeaderVocabularyFromFile(vocabPath, base, []string{
		filepath.Join("internal", "ingest"),
	})
	if err != nil {
		t.Fatalf("validate repository: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d: %s", v.File, v.Line, v.Message)
	}
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Dir(filepath.Dir(wd))
}
