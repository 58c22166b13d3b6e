package azure

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"
)

// BlobStorageClient archives chat media in an Azure Blob Storage container
type BlobStorageClient struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewBlobStorageClient creates a new Azure Blob Storage client
func NewBlobStorageClient(accountName, accountKey, containerName string, logger *zap.Logger) (*BlobStorageClient, error) {
	if accountName == "" || accountKey == "" || containerName == "" {
		return nil, fmt.Errorf("accountName, accountKey, and containerName are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// Archive uploads one media file and returns its blob name
func (c *BlobStorageClient) Archive(ctx context.Context, folder, name, contentType string, data []byte) (string, error) {
	blobName, err := BlobName(folder, name)
	if err != nil {
		return "", err
	}

	c.logger.Info("archiving chat media",
		zap.String("blob_name", blobName),
		zap.String("content_type", contentType),
		zap.Int("size_bytes", len(data)),
	)

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)
	_, err = blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: toPtr(contentType)},
	})
	if err != nil {
		c.logger.Error("failed to archive chat media",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload %s: %w", blobName, err)
	}

	return blobName, nil
}

// Fetch downloads an archived file with its content type
func (c *BlobStorageClient) Fetch(ctx context.Context, blobName string) ([]byte, string, error) {
	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	resp, err := blobClient.DownloadStream(ctx, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrMediaNotFound, blobName)
	}
	if err != nil {
		c.logger.Error("failed to download chat media",
			zap.String("blob_name", blobName),
			zap.Error(err),
		)
		return nil, "", fmt.Errorf("failed to download %s: %w", blobName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", blobName, err)
	}

	contentType := "application/octet-stream"
	if resp.ContentType != nil && *resp.ContentType != "" {
		contentType = *resp.ContentType
	}
	return data, contentType, nil
}

// BlobName joins folder and name into a blob path, refusing names that would
// escape the folder
func BlobName(folder, name string) (string, error) {
	folder = strings.Trim(folder, "/")
	if folder == "" || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid blob name %q in folder %q", name, folder)
	}
	return path.Join(folder, name), nil
}

func toPtr(s string) *string {
	return &s
}
