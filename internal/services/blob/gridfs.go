package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps files in MongoDB GridFS. References are ObjectID hex strings.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

func ConnectGridFS(ctx context.Context, uri, dbName string) (*GridFSStore, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("blob: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("blob: mongo ping: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(dbName))
	if err != nil {
		return nil, nil, err
	}
	return &GridFSStore{bucket: bucket}, client, nil
}

func (s *GridFSStore) Put(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	stream, err := s.bucket.OpenUploadStream(prefix + "_" + filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Abort()
		return "", err
	}
	if err := stream.Close(); err != nil {
		return "", err
	}
	return stream.FileID.(primitive.ObjectID).Hex(), nil
}

func (s *GridFSStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrInvalidRef
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}
