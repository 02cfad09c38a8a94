package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
}

func TestParse_Functions(t *testing.T) {
	src := `package sample

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("Hello, " + name)
}

func helper() int {
	return 42
}
`
	p := New()
	result, err := p.Parse("sample.go", "go", src)
	require.NoError(t, err)
	require.Len(t, result.Spans, 2)

	assert.Equal(t, "Greet", result.Spans[0].Name)
	assert.Equal(t, SpanFunction, result.Spans[0].Kind)
	assert.Greater(t, result.Spans[0].EndLine, result.Spans[0].StartLine)

	assert.Equal(t, "helper", result.Spans[1].Name)
}

func TestParse_MethodsQualifiedByReceiver(t *testing.T) {
	src := `package sample

type Store struct{ n int }

func (s *Store) Get() int { return s.n }

func (s Store) Len() int { return s.n }
`
	p := New()
	result, err := p.Parse("sample.go", "go", src)
	require.NoError(t, err)
	require.Len(t, result.Spans, 3)

	assert.Equal(t, "Store", result.Spans[0].Name)
	assert.Equal(t, SpanBlock, result.Spans[0].Kind)
	assert.Equal(t, "Store.Get", result.Spans[1].Name)
	assert.Equal(t, "Store.Len", result.Spans[2].Name)
}

func TestParse_SkipsImportGroups(t *testing.T) {
	src := `package sample

import (
	"fmt"
	"os"
)

var Debug = os.Getenv("DEBUG") != ""

func main() { fmt.Println(Debug) }
`
	p := New()
	result, err := p.Parse("sample.go", "go", src)
	require.NoError(t, err)
	require.Len(t, result.Spans, 2)
	assert.Equal(t, "Debug", result.Spans[0].Name)
	assert.Equal(t, "main", result.Spans[1].Name)
}

func TestParse_SyntaxErrorStillYieldsSpans(t *testing.T) {
	src := `package sample

func Valid() int { return 1 }

func Broken( {
`
	p := New()
	result, err := p.Parse("sample.go", "go", src)
	assert.Error(t, err)
	require.NotNil(t, result)

	// The valid declaration should be recoverable from the partial AST.
	found := false
	for _, span := range result.Spans {
		if span.Name == "Valid" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	p := New()
	result, err := p.Parse("notes.txt", "", "plain text body")
	require.NoError(t, err)
	assert.Empty(t, result.Spans)
	assert.False(t, p.Supports("rust"))
	assert.True(t, p.Supports("go"))
}

func TestParse_DeterministicSpans(t *testing.T) {
	src := `package sample

func A() {}
func B() {}
`
	p := New()
	first, err := p.Parse("sample.go", "go", src)
	require.NoError(t, err)
	second, err := p.Parse("sample.go", "go", src)
	require.NoError(t, err)
	assert.Equal(t, first.Spans, second.Spans)
}
