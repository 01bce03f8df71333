// Package validation implements the repository's static source checks. The
// header vocabulary guard keeps every FITS keyword the extraction pipeline
// reads declared in one place, so keyword drift between readers shows up at
// lint time instead of as silently absent fields.
package validation

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Error reports one source location violating a validation rule.
type Error struct {
	File    string
	Line    int
	Message string
	Code    string
}

// rawAccessors are the header map accessor methods whose key arguments the
// guard inspects.
var rawAccessors = map[string]bool{
	"str":     true,
	"float":   true,
	"integer": true,
	"boolean": true,
	"indexed": true,
}

// Vocabulary holds the declared header keywords and the names of their
// declaring constants.
type Vocabulary struct {
	// Keywords maps raw keyword strings, such as "OBSID", to the constant
	// declaring them.
	Keywords map[string]string
	// Constants holds every declared constant name.
	Constants map[string]bool
}

// LoadVocabulary parses the vocabulary declaration file and collects every
// string constant it declares.
func LoadVocabulary(vocabPath string) (Vocabulary, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, vocabPath, nil, 0)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	vocab := Vocabulary{
		Keywords:  map[string]string{},
		Constants: map[string]bool{},
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			value, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range value.Names {
				if i >= len(value.Values) {
					continue
				}
				lit, ok := value.Values[i].(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				keyword, err := strconv.Unquote(lit.Value)
				if err != nil {
					continue
				}
				if prior, dup := vocab.Keywords[keyword]; dup {
					return Vocabulary{}, fmt.Errorf("keyword %q declared by both %s and %s", keyword, prior, name.Name)
				}
				vocab.Keywords[keyword] = name.Name
				vocab.Constants[name.Name] = true
			}
		}
	}
	if len(vocab.Keywords) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary file %s declares no string constants", vocabPath)
	}
	return vocab, nil
}

// ValidateHeaderVocabularyFromFile loads the vocabulary and checks every
// source file under the roots.
func ValidateHeaderVocabularyFromFile(vocabPath, baseDir string, roots []string) ([]Error, error) {
	vocab, err := LoadVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}
	return ValidateHeaderVocabulary(vocab, baseDir, roots)
}

// ValidateHeaderVocabulary reports header accessor calls whose key argument
// is a string literal not declared in the vocabulary. Keys threaded through
// identifiers are accepted; the vocabulary file itself is the single point
// that ties names to raw keyword strings.
func ValidateHeaderVocabulary(vocab Vocabulary, baseDir string, roots []string) ([]Error, error) {
	if len(roots) == 0 {
		return nil, errors.New("no roots provided for header vocabulary validation")
	}
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}

	var violations []Error
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		rootPath := root
		if !filepath.IsAbs(rootPath) {
			rootPath = filepath.Join(baseAbs, rootPath)
		}
		info, err := os.Stat(rootPath)
		if err != nil {
			return nil, fmt.Errorf("stat root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", root)
		}
		if err := filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(baseAbs, path)
			if err != nil {
				return err
			}
			fileViolations, err := validateVocabularyFile(path, filepath.ToSlash(rel), vocab)
			if err != nil {
				return err
			}
			violations = append(violations, fileViolations...)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return violations, nil
}

func validateVocabularyFile(path, rel string, vocab Vocabulary) ([]Error, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}

	var violations []Error
	ast.Inspect(file, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || !rawAccessors[sel.Sel.Name] {
			return true
		}
		for _, arg := range call.Args {
			lit, ok := arg.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			keyword, err := strconv.Unquote(lit.Value)
			if err != nil {
				continue
			}
			pos := fset.Position(lit.Pos())
			if constName, declared := vocab.Keywords[keyword]; declared {
				violations = append(violations, Error{
					File:    rel,
					Line:    pos.Line,
					Message: fmt.Sprintf("keyword %q accessed by literal; use the declared constant %s", keyword, constName),
					Code:    lit.Value,
				})
				continue
			}
			violations = append(violations, Error{
				File:    rel,
				Line:    pos.Line,
				Message: fmt.Sprintf("keyword %q is not declared in the header vocabulary", keyword),
				Code:    lit.Value,
			})
		}
		return true
	})
	return violations, nil
}
