package chunker

import (
	"path/filepath"
	"strings"

	"github.com/mdevan/promptdex/internal/parser"
	"github.com/mdevan/promptdex/pkg/types"
)

// Chunker splits item bodies into retrievable units. Plain text yields
// exactly one whole-item chunk; recognized source code is split into
// declaration-level spans with a whole-item fallback when parsing fails.
type Chunker struct {
	parser *parser.Parser
}

// New creates a new Chunker instance.
func New() *Chunker {
	return &Chunker{parser: parser.New()}
}

// Chunk produces the chunks for an item. Chunking is deterministic: the same
// body always yields byte-identical chunk boundaries, so unchanged chunks
// can be recognized by ID + content hash and their embeddings reused.
//
// A parse failure degrades granularity to a single whole-item chunk and is
// never an error; an empty body yields no chunks.
func (c *Chunker) Chunk(item *types.Item) []*types.Chunk {
	if strings.TrimSpace(item.Body) == "" {
		return nil
	}

	language := detectLanguage(item)
	if !c.parser.Supports(language) {
		return []*types.Chunk{c.wholeItemChunk(item, language)}
	}

	result, err := c.parser.Parse(item.Name, language, item.Body)
	if err != nil && len(result.Spans) == 0 {
		return []*types.Chunk{c.wholeItemChunk(item, language)}
	}
	if len(result.Spans) == 0 {
		return []*types.Chunk{c.wholeItemChunk(item, language)}
	}

	lines := strings.Split(item.Body, "\n")
	chunks := make([]*types.Chunk, 0, len(result.Spans))
	for _, span := range result.Spans {
		if chunk := c.spanChunk(item, language, span, lines); chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return []*types.Chunk{c.wholeItemChunk(item, language)}
	}
	return chunks
}

// spanChunk extracts one declaration span as a chunk.
func (c *Chunker) spanChunk(item *types.Item, language string, span parser.Span, lines []string) *types.Chunk {
	if span.StartLine <= 0 || span.EndLine <= 0 || span.StartLine > len(lines) {
		return nil
	}

	endIdx := span.EndLine
	if endIdx > len(lines) {
		endIdx = len(lines)
	}

	kind := types.ChunkBlock
	if span.Kind == parser.SpanFunction {
		kind = types.ChunkFunction
	}

	chunk := &types.Chunk{
		ID:        types.ChunkID(item.Name, span.StartLine, endIdx),
		ItemName:  item.Name,
		Content:   strings.Join(lines[span.StartLine-1:endIdx], "\n"),
		StartLine: span.StartLine,
		EndLine:   endIdx,
		Language:  language,
		Kind:      kind,
	}
	chunk.ComputeContentHash()
	return chunk
}

// wholeItemChunk covers the entire body as a single chunk.
func (c *Chunker) wholeItemChunk(item *types.Item, language string) *types.Chunk {
	lines := strings.Count(item.Body, "\n") + 1
	chunk := &types.Chunk{
		ID:        types.ChunkID(item.Name, 1, lines),
		ItemName:  item.Name,
		Content:   item.Body,
		StartLine: 1,
		EndLine:   lines,
		Language:  language,
		Kind:      types.ChunkWholeItem,
	}
	chunk.ComputeContentHash()
	return chunk
}

// detectLanguage resolves the body language from the item's declared
// language, falling back to the source file extension.
func detectLanguage(item *types.Item) string {
	if item.Language != "" {
		return item.Language
	}
	switch strings.ToLower(filepath.Ext(item.Path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	default:
		return ""
	}
}
