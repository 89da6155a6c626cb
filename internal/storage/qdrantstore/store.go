// Package qdrantstore adapts codecortex's storage.VectorStore contract
// to Qdrant, preserving the contract exactly: typed point structs, no
// string interpolation of user data into filters.
package qdrantstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	cerrors "codecortex/internal/errors"
	"codecortex/internal/storage"
)

// Config names the Qdrant connection and collection to use.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// Store implements storage.VectorStore against a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// New dials Qdrant and ensures the configured collection exists,
// creating it with cosine distance if missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: failed to create client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection, dimensions: cfg.Dimensions}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("qdrantstore: failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: failed to create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Dimensions() int {
	return s.dimensions
}

func (s *Store) Store(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	if len(vector) != s.dimensions {
		return cerrors.NewDimensionMismatchError(len(vector), s.dimensions)
	}
	point := &qdrant.PointStruct{
		Id:      stringToPointID(id),
		Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vector}}},
		Payload: metadataToPayload(metadata),
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: upsert failed: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int, filters map[string]interface{}) ([]storage.ScoredPoint, error) {
	if len(queryVector) != s.dimensions {
		return nil, cerrors.NewDimensionMismatchError(len(queryVector), s.dimensions)
	}
	if limit <= 0 {
		limit = 10
	}

	result, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filterFromMap(filters),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: query failed: %w", err)
	}

	out := make([]storage.ScoredPoint, 0, len(result))
	for _, point := range result {
		out = append(out, storage.ScoredPoint{
			ID:       pointIDToString(point.GetId()),
			Score:    float64(point.GetScore()),
			Metadata: payloadToMetadata(point.GetPayload()),
		})
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{stringToPointID(id)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: delete failed: %w", err)
	}
	return nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filters map[string]interface{}) error {
	filter := filterFromMap(filters)
	if filter == nil {
		return fmt.Errorf("qdrantstore: delete_by_filter requires at least one filter")
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: delete_by_filter failed: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0, fmt.Errorf("qdrantstore: count failed: %w", err)
	}
	return int(count), nil
}

func stringToPointID(id string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}
}

func pointIDToString(id *qdrant.PointId) string {
	return id.GetUuid()
}

func metadataToPayload(metadata map[string]interface{}) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(metadata))
	for k, v := range metadata {
		payload[k] = valueOf(v)
	}
	return payload
}

func valueOf(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func payloadToMetadata(payload map[string]*qdrant.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch kind := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// filterFromMap builds an equality AND-filter over typed field
// conditions — never string-interpolated, always passed as
// qdrant.Match values.
func filterFromMap(filters map[string]interface{}) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for k, v := range filters {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   k,
					Match: matchOf(v),
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func matchOf(v interface{}) *qdrant.Match {
	switch val := v.(type) {
	case string:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val}}
	case int:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(val)}}
	case int64:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: val}}
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: val}}
	default:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", val)}}
	}
}
