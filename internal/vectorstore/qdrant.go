// Package vectorstore provides the vector storage backend for
// embedded document chunks: collection lifecycle, upsert, similarity
// search, and deletion-by-filter (§4.1, C1).
package vectorstore

import (
	"context"

	"github.com/qdrant/go-client/qdrant"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/types"
)

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document types.DocumentInput
	Score    float32
}

// Store is the vector backend capability surface consumed by the
// update pipeline and the search path.
type Store interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, collection string, docs []types.DocumentInput) error
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]SearchResult, error)
	SearchByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]types.DocumentInput, error)
	DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) (int, error)
	CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error)
	Close() error
}

// CollectionInfo mirrors the teacher's CollectionInfo.
type CollectionInfo struct {
	PointsCount int64
	VectorSize  int
	Status      string
}

// QdrantStore implements Store over github.com/qdrant/go-client,
// generalized from the teacher's internal/store/qdrant.go: chunk
// payloads are replaced by the spec's DocumentMetadata shape, and a
// DeleteByFilter method is added since the teacher never needed one
// (it only ever rebuilt collections wholesale).
type QdrantStore struct {
	client *qdrant.Client
}

func NewQdrantStore(host string, port int, useTLS bool) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, &errs.ConnectionError{Backend: "qdrant", Cause: err}
	}
	return &QdrantStore{client: client}, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return classifyQdrantErr("ensure_collection", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return classifyQdrantErr("ensure_collection", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []types.DocumentInput) error {
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(d.ID),
			Vectors: qdrant.NewVectors(d.Embedding...),
			Payload: qdrant.NewValueMap(documentPayload(d)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return classifyQdrantErr("upsert", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]SearchResult, error) {
	var qf *qdrant.Filter
	if len(filter) > 0 {
		qf = buildFilter(filter)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classifyQdrantErr("search", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: payloadToDocument(r.Id.GetUuid(), r.Payload),
			Score:    r.Score,
		}
	}
	return out, nil
}

func (s *QdrantStore) SearchByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]types.DocumentInput, error) {
	qf := buildFilter(filter)

	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         qf,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classifyQdrantErr("search_by_filter", err)
	}

	docs := make([]types.DocumentInput, len(results))
	for i, r := range results {
		docs[i] = payloadToDocument(r.Id.GetUuid(), r.Payload)
	}
	return docs, nil
}

// DeleteByFilter removes every point matching filter. The teacher's
// store never deleted individual points, only whole collections; C1
// needs per-(repository, file_path) deletion for modified/deleted/
// renamed files, so this scrolls the matching ids and issues a
// points-selector delete.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) (int, error) {
	qf := buildFilter(filter)

	var ids []*qdrant.PointId
	offset := (*qdrant.PointId)(nil)
	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         qf,
			Limit:          qdrant.PtrOf(uint32(500)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return 0, classifyQdrantErr("delete_by_filter", err)
		}
		if len(results) == 0 {
			break
		}
		for _, r := range results {
			ids = append(ids, r.Id)
		}
		if len(results) < 500 {
			break
		}
		offset = results[len(results)-1].Id
	}

	if len(ids) == 0 {
		return 0, nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return 0, classifyQdrantErr("delete_by_filter", err)
	}
	return len(ids), nil
}

func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return CollectionInfo{}, classifyQdrantErr("collection_info", err)
	}

	vectorSize := 0
	if params := info.Config.GetParams(); params != nil {
		if vecConfig := params.GetVectorsConfig(); vecConfig != nil {
			if vecParams := vecConfig.GetParams(); vecParams != nil {
				vectorSize = int(vecParams.GetSize())
			}
		}
	}

	pointsCount := int64(0)
	if info.PointsCount != nil {
		pointsCount = int64(*info.PointsCount)
	}

	return CollectionInfo{
		PointsCount: pointsCount,
		VectorSize:  vectorSize,
		Status:      info.Status.String(),
	}, nil
}

func buildFilter(filter map[string]interface{}) *qdrant.Filter {
	var must []*qdrant.Condition
	for key, value := range filter {
		switch v := value.(type) {
		case string:
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   key,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}},
					},
				},
			})
		case bool:
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   key,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}},
					},
				},
			})
		case int:
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   key,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}},
					},
				},
			})
		}
	}
	return &qdrant.Filter{Must: must}
}

func documentPayload(d types.DocumentInput) map[string]interface{} {
	return map[string]interface{}{
		"content":          d.Content,
		"file_path":        d.Metadata.FilePath,
		"repository":       d.Metadata.Repository,
		"chunk_index":      d.Metadata.ChunkIndex,
		"total_chunks":     d.Metadata.TotalChunks,
		"chunk_start_line": d.Metadata.ChunkStartLine,
		"chunk_end_line":   d.Metadata.ChunkEndLine,
		"file_extension":   d.Metadata.FileExtension,
		"file_size_bytes":  d.Metadata.FileSizeBytes,
		"content_hash":     d.Metadata.ContentHash,
		"indexed_at":       d.Metadata.IndexedAt.Unix(),
		"file_modified_at": d.Metadata.FileModifiedAt.Unix(),
	}
}

func payloadToDocument(id string, payload map[string]*qdrant.Value) types.DocumentInput {
	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	getInt64 := func(key string) int64 {
		if v, ok := payload[key]; ok {
			return v.GetIntegerValue()
		}
		return 0
	}

	return types.DocumentInput{
		ID:      id,
		Content: getString("content"),
		Metadata: types.DocumentMetadata{
			FilePath:       getString("file_path"),
			Repository:     getString("repository"),
			ChunkIndex:     getInt("chunk_index"),
			TotalChunks:    getInt("total_chunks"),
			ChunkStartLine: getInt("chunk_start_line"),
			ChunkEndLine:   getInt("chunk_end_line"),
			FileExtension:  getString("file_extension"),
			FileSizeBytes:  getInt64("file_size_bytes"),
			ContentHash:    getString("content_hash"),
		},
	}
}

func classifyQdrantErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.OperationError{Op: op, Cause: err, Retry: false}
}
