// Package milvus wraps the Milvus SDK client for session-scoped vector
// collections.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// ChunkSchema describes a per-session chunk collection.
type ChunkSchema struct {
	Name        string
	Description string
	Dimension   int
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the chunk collection if it does not exist and
// loads it into memory. Vectors are indexed with the inner-product metric;
// callers are expected to insert L2-normalized embeddings so IP equals
// cosine similarity.
func (c *Client) EnsureCollection(ctx context.Context, schema *ChunkSchema) error {
	exists, err := c.HasCollection(ctx, schema.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(true)

	collSchema.WithField(
		entity.NewField().
			WithName("id").
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("document_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("chunk_index").
			WithDataType(entity.FieldTypeInt64),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("text").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535),
	)
	collSchema.WithField(
		entity.NewField().
			WithName("file_name").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(255),
	)

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.IP, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	return nil
}

// ChunkRow is one chunk inserted into or returned from a collection.
type ChunkRow struct {
	DocumentID string
	ChunkIndex int64
	Text       string
	FileName   string
	Embedding  []float32
	Score      float32
}

// InsertChunks inserts chunk rows and flushes so they are immediately
// searchable.
func (c *Client) InsertChunks(ctx context.Context, collectionName string, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(rows))
	docIDs := make([]string, len(rows))
	indexes := make([]int64, len(rows))
	texts := make([]string, len(rows))
	fileNames := make([]string, len(rows))
	for i, row := range rows {
		embeddings[i] = row.Embedding
		docIDs[i] = row.DocumentID
		indexes[i] = row.ChunkIndex
		texts[i] = row.Text
		fileNames[i] = row.FileName
	}

	columns := []column.Column{
		column.NewColumnFloatVector("embedding", len(embeddings[0]), embeddings),
		column.NewColumnVarChar("document_id", docIDs),
		column.NewColumnInt64("chunk_index", indexes),
		column.NewColumnVarChar("text", texts),
		column.NewColumnVarChar("file_name", fileNames),
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collectionName, columns...)); err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}

	// Flush so freshly uploaded chunks are visible to the next query.
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}

	return nil
}

// SearchChunks performs a vector similarity search and returns scored rows.
func (c *Client) SearchChunks(ctx context.Context, collectionName string, vector []float32, topK int) ([]ChunkRow, error) {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collectionName))
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for collection loading: %w", err)
	}

	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collectionName,
		topK,
		searchVectors,
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields("document_id", "chunk_index", "text", "file_name"))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []ChunkRow{}, nil
	}

	rows := make([]ChunkRow, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		row := ChunkRow{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case "document_id":
					row.DocumentID = col.Data()[i]
				case "text":
					row.Text = col.Data()[i]
				case "file_name":
					row.FileName = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == "chunk_index" {
					row.ChunkIndex = col.Data()[i]
				}
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
