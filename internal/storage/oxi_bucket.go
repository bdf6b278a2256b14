package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/stevi10623-crypto/deductly-intake/internal/db"
	"github.com/stevi10623-crypto/deductly-intake/internal/oxidb"
)

// OxiBucket stores files as blobs in an OxiDB bucket.
type OxiBucket struct {
	pool     *db.Pool
	bucket   string
	initOnce sync.Once
	initErr  error
}

func NewOxiBucket(pool *db.Pool, bucket string) *OxiBucket {
	return &OxiBucket{pool: pool, bucket: bucket}
}

func (b *OxiBucket) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		err := b.pool.Get().CreateBucket(ctx, b.bucket)
		if err != nil && !oxidb.IsExists(err) {
			b.initErr = err
		}
	})
	return b.initErr
}

func (b *OxiBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := b.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	return b.pool.Get().PutObject(ctx, b.bucket, key, data, contentType)
}

func (b *OxiBucket) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := b.pool.Get().GetObject(ctx, b.bucket, key)
	if err != nil {
		if oxidb.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(obj.Data)),
		ContentType: obj.ContentType,
		Size:        obj.Size,
	}, nil
}

func (b *OxiBucket) Delete(ctx context.Context, key string) error {
	err := b.pool.Get().DeleteObject(ctx, b.bucket, key)
	if oxidb.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (b *OxiBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	docs, err := b.pool.Get().ListObjects(ctx, b.bucket, prefix)
	if err != nil {
		if oxidb.IsNotFound(err) {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(docs))
	for _, d := range docs {
		key, _ := d["key"].(string)
		if key == "" {
			continue
		}
		size, _ := d["size"].(float64)
		out = append(out, ObjectInfo{Key: key, Size: int64(size)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
