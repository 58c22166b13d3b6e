package azure

import (
	"context"
)

// MediaStore archives chat media and serves it back by reference
type MediaStore interface {
	Archive(ctx context.Context, folder, name, contentType string, data []byte) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, string, error)
}

var (
	_ MediaStore = (*BlobStorageClient)(nil)
	_ MediaStore = (*MemoryMediaStore)(nil)
)
