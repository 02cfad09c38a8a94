package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdevan/promptdex/internal/embedder"
	"github.com/mdevan/promptdex/internal/engine"
	"github.com/mdevan/promptdex/internal/library"
	"github.com/mdevan/promptdex/pkg/types"
)

// writeLibrary lays out a builtin root with the standard test items.
func writeLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"hello-world.md": `---
name: hello-world
title: Hello World
description: A friendly greeting template
category: greetings
tags:
  - greeting
---
Say hello to {{ name }} in a warm and welcoming tone.
`,
		"debug-error.md": `---
name: debug-error
title: Debug Error
description: Diagnose an error message
category: debugging
tags:
  - debugging
---
Given the error message below, explain the root cause and propose a fix.
`,
		"go-http-server.md": `---
name: go-http-server
title: Go HTTP Server
description: Minimal HTTP server skeleton
language: go
---
package main

import "net/http"

func main() {
	http.ListenAndServe(":8080", nil)
}

func handler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newEngine(t *testing.T, builtinDir string) *engine.Engine {
	t.Helper()

	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	e, err := engine.New(engine.Config{
		RootDir:  t.TempDir(),
		Embedder: local,
		LibraryRoots: []library.Root{
			{Path: builtinDir, Source: types.SourceBuiltin},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Sync(context.Background())
	require.NoError(t, err)
	return e
}

func TestFullPipelineEndToEnd(t *testing.T) {
	e := newEngine(t, writeLibrary(t))
	ctx := context.Background()

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Items)
	assert.Equal(t, 3, status.IndexedItems)
	// The Go item splits into one chunk per declaration; the prose items
	// stay whole.
	assert.Greater(t, status.StoredChunks, 3)

	resp, err := e.Search(ctx, "hello", engine.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "hello-world", resp.Results[0].ItemName)
}

func TestTypoToleranceScenario(t *testing.T) {
	e := newEngine(t, writeLibrary(t))

	resp, err := e.Search(context.Background(), "helo", engine.Options{Strategy: engine.StrategyFuzzy})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "hello-world", resp.Results[0].ItemName)
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestFieldScopedQueries(t *testing.T) {
	e := newEngine(t, writeLibrary(t))
	ctx := context.Background()

	resp, err := e.Search(ctx, "debug", engine.Options{Strategy: engine.StrategyText, Scope: types.ScopeName})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "debug-error", resp.Results[0].ItemName)

	resp, err = e.Search(ctx, "ListenAndServe", engine.Options{Strategy: engine.StrategyText, Scope: types.ScopeContent})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "go-http-server", resp.Results[0].ItemName)
}

func TestRegexQueryScenario(t *testing.T) {
	e := newEngine(t, writeLibrary(t))

	resp, err := e.Search(context.Background(), `http\.\w+`, engine.Options{Strategy: engine.StrategyText, Regex: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "go-http-server", resp.Results[0].ItemName)
}

func TestDeletionScenario(t *testing.T) {
	e := newEngine(t, writeLibrary(t))
	ctx := context.Background()

	resp, err := e.Search(ctx, "greeting", engine.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	require.NoError(t, e.RemoveItem(ctx, "hello-world"))
	require.NoError(t, e.Commit(ctx))

	resp, err = e.Search(ctx, "greeting", engine.Options{})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, "hello-world", r.ItemName)
	}

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.IndexedItems)
}

func TestConcurrentQueriesDuringRebuild(t *testing.T) {
	e := newEngine(t, writeLibrary(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp, err := e.Search(ctx, "error", engine.Options{Strategy: engine.StrategyText})
				// Queries during a rebuild see a consistent snapshot: either
				// the old index or the new one, never an error.
				if assert.NoError(t, err) && len(resp.Results) > 0 {
					assert.Equal(t, "debug-error", resp.Results[0].ItemName)
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, e.RebuildTextIndex(ctx))
	}
	close(stop)
	wg.Wait()
}

func TestAgreementBoostInHybrid(t *testing.T) {
	e := newEngine(t, writeLibrary(t))

	// "debug" hits debug-error through both fuzzy (name) and text (name,
	// description) strategies.
	resp, err := e.Search(context.Background(), "debug", engine.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "debug-error", top.ItemName)
	assert.GreaterOrEqual(t, len(top.Strategies), 2)
	assert.LessOrEqual(t, top.Score, 1.0)
}

func TestProvenancePrecedenceEndToEnd(t *testing.T) {
	builtin := writeLibrary(t)
	localDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "hello-world.md"), []byte(`---
name: hello-world
title: Local Hello Override
---
A local override of the greeting template.
`), 0o644))

	localEmb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	e, err := engine.New(engine.Config{
		RootDir:  t.TempDir(),
		Embedder: localEmb,
		LibraryRoots: []library.Root{
			{Path: builtin, Source: types.SourceBuiltin},
			{Path: localDir, Source: types.SourceLocal},
		},
	})
	require.NoError(t, err)
	defer e.Close()
	ctx := context.Background()

	_, err = e.Sync(ctx)
	require.NoError(t, err)

	resp, err := e.Search(ctx, "hello", engine.Options{Strategy: engine.StrategyText})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "hello-world", resp.Results[0].ItemName)
	assert.Equal(t, "Local Hello Override", resp.Results[0].Title)
	assert.Equal(t, types.SourceLocal, resp.Results[0].Source)
}

func TestLargeLibraryIndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 80; i++ {
		content := fmt.Sprintf(`---
name: generated-%02d
title: Generated Item %d
---
Generated body text for item %d with some shared vocabulary.
`, i, i, i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("generated-%02d.md", i)), []byte(content), 0o644))
	}

	e := newEngine(t, dir)
	ctx := context.Background()

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, status.IndexedItems)

	resp, err := e.Search(ctx, "shared vocabulary", engine.Options{Strategy: engine.StrategyText, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 10)
}
