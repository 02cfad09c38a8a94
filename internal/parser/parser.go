package parser

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// SpanKind classifies a source-code span extracted from a body.
type SpanKind string

const (
	SpanFunction SpanKind = "function"
	SpanBlock    SpanKind = "block" // Type, const, or var declaration groups
)

// Span is a line range covering one top-level declaration.
type Span struct {
	Name      string
	Kind      SpanKind
	StartLine int
	EndLine   int
}

// Result holds the outcome of parsing a source-code body.
type Result struct {
	Language string
	Spans    []Span
}

// Parser extracts declaration-level spans from source-code item bodies.
// Only Go is recognized; unrecognized languages fall back to whole-item
// chunking in the caller.
type Parser struct{}

// New creates a new Parser instance.
func New() *Parser {
	return &Parser{}
}

// Supports reports whether the parser can split bodies of the given language.
func (p *Parser) Supports(language string) bool {
	return language == "go"
}

// Parse extracts top-level declaration spans from src. A syntax error is
// returned to the caller but parsing is best-effort: any spans recovered
// from a partial AST are still included in the result.
func (p *Parser) Parse(name, language, src string) (*Result, error) {
	if !p.Supports(language) {
		return &Result{Language: language}, nil
	}

	fset := token.NewFileSet()
	file, parseErr := parser.ParseFile(fset, name, src, parser.SkipObjectResolution)

	result := &Result{Language: language}
	if file == nil {
		return result, parseErr
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			result.Spans = append(result.Spans, Span{
				Name:      funcName(d),
				Kind:      SpanFunction,
				StartLine: fset.Position(d.Pos()).Line,
				EndLine:   fset.Position(d.End()).Line,
			})
		case *ast.GenDecl:
			// Import groups carry no retrievable content of their own
			if d.Tok == token.IMPORT {
				continue
			}
			result.Spans = append(result.Spans, Span{
				Name:      genDeclName(d),
				Kind:      SpanBlock,
				StartLine: fset.Position(d.Pos()).Line,
				EndLine:   fset.Position(d.End()).Line,
			})
		}
	}

	return result, parseErr
}

// funcName returns the declared name, qualified with the receiver type for
// methods so span names stay unique within a body.
func funcName(d *ast.FuncDecl) string {
	if d.Recv != nil && len(d.Recv.List) > 0 {
		if recv := receiverType(d.Recv.List[0].Type); recv != "" {
			return recv + "." + d.Name.Name
		}
	}
	return d.Name.Name
}

// receiverType extracts the base type name from a method receiver expression.
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	default:
		return ""
	}
}

// genDeclName returns the first declared name in a type/const/var group.
func genDeclName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			return s.Name.Name
		case *ast.ValueSpec:
			if len(s.Names) > 0 {
				return s.Names[0].Name
			}
		}
	}
	return ""
}
