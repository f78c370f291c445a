package semantic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

type mockPoints struct {
	upsertErr  error
	upserts    []*pb.UpsertPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserts = append(m.upserts, in)
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	existing  []string
	listErr   error
	createErr error
	deleteErr error
	created   []string
	deleted   []string
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	descs := make([]*pb.CollectionDescription, len(m.existing))
	for i, name := range m.existing {
		descs[i] = &pb.CollectionDescription{Name: name}
	}
	return &pb.ListCollectionsResponse{Collections: descs}, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text)%(i+2)) + 0.1
	}
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func testChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			Text:       fmt.Sprintf("chunk %d text", i),
			SourcePath: "/data/doc.txt",
			Filename:   "doc.txt",
			Seq:        i,
		}
	}
	return chunks
}

func TestEnsureCollectionAlreadyExists(t *testing.T) {
	cols := &mockCollections{existing: []string{"pathwise_v1"}}
	s := NewWithClients(&mockPoints{}, cols)
	if err := s.EnsureCollection(context.Background(), "pathwise_v1", 4); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(cols.created) != 0 {
		t.Error("existing collection should not be recreated")
	}
}

func TestEnsureCollectionCreates(t *testing.T) {
	cols := &mockCollections{existing: []string{"other"}}
	s := NewWithClients(&mockPoints{}, cols)
	if err := s.EnsureCollection(context.Background(), "pathwise_v1", 128); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(cols.created) != 1 || cols.created[0] != "pathwise_v1" {
		t.Errorf("created = %v", cols.created)
	}
}

func TestEnsureCollectionListError(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")})
	if err := s.EnsureCollection(context.Background(), "c", 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsertChunksLengthMismatch(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{})
	err := s.UpsertChunks(context.Background(), "c", testChunks(2), [][]float32{{1}})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestUpsertChunksPayload(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{})
	chunks := testChunks(1)
	if err := s.UpsertChunks(context.Background(), "c", chunks, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(pts.upserts) != 1 {
		t.Fatalf("upserts = %d", len(pts.upserts))
	}
	p := pts.upserts[0].GetPoints()[0]
	if p.GetId().GetUuid() != chunks[0].ID {
		t.Errorf("point id = %s", p.GetId().GetUuid())
	}
	if p.GetPayload()["filename"].GetStringValue() != "doc.txt" {
		t.Error("filename payload missing")
	}
	if p.GetPayload()["seq"].GetIntegerValue() != 0 {
		t.Error("seq payload missing")
	}
}

func TestSearchReturnsScoredChunks(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
				},
			},
		},
	}
	s := NewWithClients(pts, &mockCollections{})
	hits, err := s.Search(context.Background(), "c", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "p1" || hits[0].Score != float64(float32(0.95)) {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSearchError(t *testing.T) {
	s := NewWithClients(&mockPoints{searchErr: errors.New("fail")}, &mockCollections{})
	if _, err := s.Search(context.Background(), "c", []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestBackendBuildAndQuery(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}}, Score: 0.9},
			},
		},
	}
	cols := &mockCollections{}
	b := NewBackend(NewWithClients(pts, cols), fakeEmbedder{dim: 4}, "pathwise")

	searcher, err := b.Build(context.Background(), "v1", testChunks(200))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "pathwise_v1" {
		t.Errorf("stale collection not dropped: %v", cols.deleted)
	}
	if len(cols.created) != 1 || cols.created[0] != "pathwise_v1" {
		t.Errorf("created = %v", cols.created)
	}
	// 200 chunks at batch size 128 means two upsert calls.
	if len(pts.upserts) != 2 {
		t.Errorf("upsert calls = %d", len(pts.upserts))
	}

	hits, err := searcher.Query(context.Background(), "career question", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "p1" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestBackendBuildEmpty(t *testing.T) {
	b := NewBackend(NewWithClients(&mockPoints{}, &mockCollections{}), fakeEmbedder{dim: 4}, "")
	if _, err := b.Build(context.Background(), "v1", nil); !errors.Is(err, domain.ErrNoChunks) {
		t.Fatalf("want ErrNoChunks, got %v", err)
	}
}

func TestSearcherEmbedError(t *testing.T) {
	s := &Searcher{
		store:      NewWithClients(&mockPoints{}, &mockCollections{}),
		emb:        fakeEmbedder{err: errors.New("embed down")},
		collection: "c",
	}
	if _, err := s.Query(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error")
	}
}
