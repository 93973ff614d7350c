package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/docker/rulelawyer/pkg/rag/types"
)

const (
	bleveContentField = "content"
	bleveTitleField   = "title"
	bleveBatchSize    = 500
)

// Bleve scores documents with an in-memory bleve index. Documents are indexed
// under their corpus position and match on content or source title; documents
// without a hit score zero.
type Bleve struct {
	docs  []types.Document
	index bleve.Index
}

func NewBleve(docs []types.Document) (*Bleve, error) {
	index, err := createBleveIndex()
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}

	batch := index.NewBatch()
	for i, doc := range docs {
		fields := map[string]any{
			bleveContentField: doc.Content,
			bleveTitleField:   doc.Title(),
		}
		if err := batch.Index(strconv.Itoa(i), fields); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("indexing document %q: %w", doc.Key(), err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("flushing index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("flushing index batch: %w", err)
	}

	return &Bleve{docs: docs, index: index}, nil
}

func createBleveIndex() (bleve.Index, error) {
	indexMapping := mapping.NewIndexMapping()

	docMapping := mapping.NewDocumentMapping()
	content := mapping.NewTextFieldMapping()
	content.Analyzer = "standard"
	content.Store = false
	docMapping.AddFieldMappingsAt(bleveContentField, content)

	title := mapping.NewTextFieldMapping()
	title.Analyzer = "standard"
	title.Store = false
	docMapping.AddFieldMappingsAt(bleveTitleField, title)

	indexMapping.DefaultMapping = docMapping

	return bleve.NewMemOnly(indexMapping)
}

func (idx *Bleve) Score(ctx context.Context, tokens []string) ([]float64, error) {
	scores := make([]float64, len(idx.docs))
	if len(tokens) == 0 || len(idx.docs) == 0 {
		return scores, nil
	}

	text := strings.Join(tokens, " ")
	content := bleve.NewMatchQuery(text)
	content.SetField(bleveContentField)
	title := bleve.NewMatchQuery(text)
	title.SetField(bleveTitleField)
	query := bleve.NewDisjunctionQuery(content, title)

	req := bleve.NewSearchRequestOptions(query, len(idx.docs), 0, false)
	results, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	for _, hit := range results.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(scores) {
			continue
		}
		scores[i] = hit.Score
	}
	return scores, nil
}

func (idx *Bleve) Len() int {
	return len(idx.docs)
}

func (idx *Bleve) Document(i int) types.Document {
	return idx.docs[i]
}

func (idx *Bleve) Close() error {
	return idx.index.Close()
}
