// Package semantic is the remote dense-index backend over Qdrant. Each
// corpus version gets its own collection; a rebuild never mutates the
// collection a live version is reading.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

// pointsAPI is the slice of the Qdrant points service the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the slice of the Qdrant collections service the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of all Qdrant operations.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewWithClients creates a Store over existing clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI) *Store {
	return &Store{points: points, collections: collections}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	return nil
}

// DropCollection deletes the collection. Missing collections are not an
// error at the caller level; Qdrant reports success either way.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("semantic: drop collection %s: %w", name, err)
	}
	return nil
}

// UpsertChunks stores chunk vectors into the collection. Chunk IDs are
// UUIDs and double as point IDs; provenance rides along as payload.
func (s *Store) UpsertChunks(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("semantic: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*pb.Value{
				"source_path": {Kind: &pb.Value_StringValue{StringValue: c.SourcePath}},
				"filename":    {Kind: &pb.Value_StringValue{StringValue: c.Filename}},
				"seq":         {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Seq)}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(chunks), err)
	}
	return nil
}

// Search performs k-NN similarity search and returns chunk IDs with
// scores. The chunk bodies live in the corpus version, not here.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.ScoredChunk, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", collection, err)
	}

	hits := make([]domain.ScoredChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = domain.ScoredChunk{
			ChunkID: r.GetId().GetUuid(),
			Score:   float64(r.GetScore()),
		}
	}
	return hits, nil
}
