package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"github.com/NedPK/ai-retrieval-audit/internal/chromemdb"
	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/db"
	"github.com/NedPK/ai-retrieval-audit/internal/embedding"
	"github.com/NedPK/ai-retrieval-audit/internal/parser"
	"github.com/NedPK/ai-retrieval-audit/internal/policy"
)

// Result summarizes one ingest run.
type Result struct {
	Documents int
	Chunks    int
}

func listFiles(root string, extensions []string) ([]string, error) {
	allowed := map[string]bool{}
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if allowed[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("docs path does not exist or is not readable: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// IngestDocs walks docsPath, extracts text from every matching file, splits
// it into overlapping token windows, embeds the windows, and stores one
// documents row plus its chunks rows. The whole run is one transaction.
func IngestDocs(ctx context.Context, bdb *bun.DB, embedder *embeddings.EmbedderImpl, cfg *config.Config, docsPath string) (*Result, error) {
	files, err := listFiles(docsPath, cfg.Ingest.Extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no matching files found under: %s", docsPath)
	}

	res := &Result{}
	err = bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, path := range files {
			text, err := parser.ExtractText(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			chunks, err := policy.ChunkByTokens(text, cfg.Ingest.ChunkTokens, cfg.Ingest.OverlapTokens)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				continue
			}

			vectors, err := embedding.EmbedDocuments(ctx, embedder, chunks)
			if err != nil {
				return fmt.Errorf("embed %s: %w", path, err)
			}
			if len(vectors) != len(chunks) {
				return fmt.Errorf("embedding count does not match chunk count for %s", path)
			}

			doc := &db.Document{Source: path}
			if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
				return err
			}

			rows := make([]db.Chunk, 0, len(chunks))
			for i, content := range chunks {
				rows = append(rows, db.Chunk{
					DocumentID: doc.ID,
					ChunkIndex: i,
					Content:    content,
					Embedding:  vectors[i],
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return err
			}

			res.Documents++
			res.Chunks += len(rows)
			log.Debug().Str("file", path).Int("chunks", len(rows)).Msg("Ingested document")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// IngestLocal does the same walk/chunk/embed pass into the embedded chromem
// collection, assigning synthetic document and chunk ids so local search
// results still carry the {chunk, document, offset} triple.
func IngestLocal(ctx context.Context, mgr *chromemdb.Manager, embedder *embeddings.EmbedderImpl, cfg *config.Config, docsPath string) (*Result, error) {
	files, err := listFiles(docsPath, cfg.Ingest.Extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no matching files found under: %s", docsPath)
	}

	res := &Result{}
	nextChunkID := int64(mgr.Count()) + 1

	var docs []chromem.Document
	for docID, path := range files {
		text, err := parser.ExtractText(path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		chunks, err := policy.ChunkByTokens(text, cfg.Ingest.ChunkTokens, cfg.Ingest.OverlapTokens)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			continue
		}

		vectors, err := embedding.EmbedDocuments(ctx, embedder, chunks)
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", path, err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("embedding count does not match chunk count for %s", path)
		}

		for i, content := range chunks {
			docs = append(docs, chromem.Document{
				ID:      strconv.FormatInt(nextChunkID, 10),
				Content: content,
				Metadata: map[string]string{
					"document_id": strconv.Itoa(docID + 1),
					"chunk_index": strconv.Itoa(i),
					"source":      path,
				},
				Embedding: vectors[i],
			})
			nextChunkID++
		}

		res.Documents++
		res.Chunks += len(chunks)
	}

	if err := mgr.AddDocuments(ctx, docs); err != nil {
		return nil, err
	}
	return res, nil
}
