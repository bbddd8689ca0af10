package chunkscan

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/graphindex/core/internal/docs"
	"github.com/graphindex/core/internal/parser"
	"github.com/graphindex/core/internal/security"
	"github.com/graphindex/core/internal/types"
)

// fallbackWindowLines bounds a chunk's size when a file's language has
// no tree-sitter grammar registered, or a parse comes back empty
// (e.g. a file of only imports/constants). The teacher only ever
// chunked by symbol; this fallback is new, grounded in the same
// line-oriented slicing `FindRelatedFiles`-adjacent code already does.
const fallbackWindowLines = 200

// Chunker splits a single file's content into FileChunks. It is
// stateless and safe for concurrent use across files.
type Chunker struct {
	secretDetector *security.SecretDetector
	testPatterns   []string
}

// NewChunker builds a chunker with the teacher's default test-file
// patterns and secret detector.
func NewChunker() *Chunker {
	return &Chunker{
		secretDetector: security.NewSecretDetector(),
		testPatterns: []string{
			"test_", "_test.py", "_test.go", ".test.js", ".test.ts",
			".spec.js", ".spec.ts", "/tests/", "/__tests__/",
		},
	}
}

// ChunkFile reads path, splits it, and returns ordered FileChunks for
// repository/relativePath. ChunkIndex and TotalChunks are filled in
// after splitting so the id contract (GenerateChunkID) stays
// reproducible regardless of split strategy.
func (c *Chunker) ChunkFile(repository, relativePath, absolutePath string) ([]types.FileChunk, error) {
	content, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absolutePath)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(content)
	meta := types.ChunkMetadata{
		Extension:      strings.ToLower(extOf(relativePath)),
		FileSizeBytes:  info.Size(),
		ContentHash:    hex.EncodeToString(hash[:]),
		FileModifiedAt: info.ModTime(),
	}

	segments := c.splitContent(string(content), relativePath, repository)

	chunks := make([]types.FileChunk, len(segments))
	for i, seg := range segments {
		body, secretTypes := c.secretDetector.DetectAndRedact(seg.content)

		chunkMeta := meta
		chunkMeta.SecretsRedacted = secretTypes

		chunks[i] = types.FileChunk{
			ID:          types.GenerateChunkID(repository, relativePath, i),
			Content:     body,
			FilePath:    relativePath,
			Repository:  repository,
			ChunkIndex:  i,
			TotalChunks: len(segments),
			StartLine:   seg.startLine,
			EndLine:     seg.endLine,
			Metadata:    chunkMeta,
		}
	}
	return chunks, nil
}

type segment struct {
	content   string
	startLine int
	endLine   int
}

// splitContent prefers symbol-aware chunking via tree-sitter and
// falls back to fixed line windows for unsupported languages or files
// that parse to zero symbols (e.g. pure config/data files). AGENTS.md
// and CLAUDE.md navigation docs are split by heading section instead,
// since their content has no symbols for tree-sitter to find.
func (c *Chunker) splitContent(content, relativePath, repository string) []segment {
	if docs.IsNavDoc(relativePath) {
		if segs, ok := c.splitNavDoc(content, relativePath, repository); ok {
			return segs
		}
	}

	if lang, ok := parser.DetectLanguage(relativePath); ok {
		if p, err := parser.NewParser(lang); err == nil {
			if symbols, err := p.Parse([]byte(content), relativePath); err == nil && len(symbols) > 0 {
				segs := make([]segment, len(symbols))
				for i, sym := range symbols {
					segs[i] = segment{content: sym.Content, startLine: sym.StartLine, endLine: sym.EndLine}
				}
				return segs
			}
		}
	}
	return windowLines(content, fallbackWindowLines)
}

// splitNavDoc parses relativePath as an AGENTS.md/CLAUDE.md navigation
// document and returns one segment per heading section. It reports ok
// = false if the document has no sections, so the caller falls back
// to line windowing rather than producing a single giant chunk.
func (c *Chunker) splitNavDoc(content, relativePath, repository string) ([]segment, bool) {
	doc, err := docs.ParseNavDoc([]byte(content), relativePath, repository)
	if err != nil || len(doc.Sections) == 0 {
		return nil, false
	}
	segs := make([]segment, len(doc.Sections))
	for i, s := range doc.Sections {
		segs[i] = segment{content: s.Content, startLine: s.StartLine, endLine: s.EndLine}
	}
	return segs, true
}

func windowLines(content string, window int) []segment {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return nil
	}

	var segs []segment
	for start := 0; start < len(lines); start += window {
		end := start + window
		if end > len(lines) {
			end = len(lines)
		}
		segs = append(segs, segment{
			content:   strings.Join(lines[start:end], "\n"),
			startLine: start + 1,
			endLine:   end,
		})
	}
	return segs
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// IsTestFile reports whether relativePath looks like a test file,
// used by callers that want to weight retrieval (kept for parity with
// the teacher's retrieval-weight concept, applied by the search layer
// rather than stored per-chunk since §3.2 has no such field).
func (c *Chunker) IsTestFile(relativePath string) bool {
	lower := strings.ToLower(relativePath)
	for _, p := range c.testPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
