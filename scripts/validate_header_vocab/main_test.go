package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"obsingest/internal/validation"
)

func TestRunUsesDefaults(t *testing.T) {
	var gotVocab string
	var gotRoots []string
	var gotBase string
	exit := run([]string{"cmd"}, &bytes.Buffer{}, func(vocabPath, baseDir string, roots []string) ([]validation.Error, error) {
		gotVocab = vocabPath
		gotRoots = roots
		gotBase = baseDir
		return nil, nil
	})
	if exit != 0 {
		t.Fatalf("expected exit 0, got %d", exit)
	}
	if gotVocab != defaultVocabPath {
		t.Fatalf("expected vocab path %q, got %q", defaultVocabPath, gotVocab)
	}
	if strings.Join(gotRoots, ",") != defaultRoots {
		t.Fatalf("expected roots %q, got %q", defaultRoots, strings.Join(gotRoots, ","))
	}
	if gotBase == "" {
		t.Fatalf("expected base dir to be set")
	}
}

func TestRunReportsViolations(t *testing.T) {
	var stderr bytes.Buffer
	exit := run([]string{"cmd"}, &stderr, func(string, string, []string) ([]validation.Error, error) {
		return []validation.Error{{
			File:    "internal/ingest/header/fields.go",
			Line:    42,
			Message: `keyword "SEEINGST" is not declared in the header vocabulary`,
		}}, nil
	})
	if exit != 1 {
		t.Fatalf("expected exit 1, got %d", exit)
	}
	out := stderr.String()
	if !strings.Contains(out, "fields.go:42") || !strings.Contains(out, "SEEINGST") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunReportsValidatorError(t *testing.T) {
	var stderr bytes.Buffer
	exit := run([]string{"cmd"}, &stderr, func(string, string, []string) ([]validation.Error, error) {
		return nil, errors.New("parse vocabulary: boom")
	})
	if exit != 1 {
		t.Fatalf("expected exit 1, got %d", exit)
	}
	if !strings.Contains(stderr.String(), "header vocabulary guard failed") {
		t.Fatalf("unexpected output: %q", stderr.String())
	}
}

func TestRunRejectsEmptyRoots(t *testing.T) {
	var stderr bytes.Buffer
	exit := run([]string{"cmd", "-roots", " , "}, &stderr, func(string, string, []string) ([]validation.Error, error) {
		t.Fatal("validator must not run without roots")
		return nil, nil
	})
	if exit != 1 {
		t.Fatalf("expected exit 1, got %d", exit)
	}
}

func TestMainUsesExitCode(t *testing.T) {
	originalExit := exitFunc
	originalValidate := validateFunc
	originalGetwd := getwd
	originalArgs := os.Args
	t.Cleanup(func() {
		exitFunc = originalExit
		validateFunc = originalValidate
		getwd = originalGetwd
		os.Args = originalArgs
	})
	var got int
	exitFunc = func(code int) { got = code }
	validateFunc = func(string, string, []string) ([]validation.Error, error) {
		return nil, nil
	}
	getwd = func() (string, error) { return t.TempDir(), nil }
	os.Args = []string{"cmd"}
	main()
	if got != 0 {
		t.Fatalf("expected exit code 0, got %d", got)
	}
}
