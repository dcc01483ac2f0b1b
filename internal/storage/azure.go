package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Azure stores objects as block blobs in one container.
type Azure struct {
	client    *azblob.Client
	container string
}

// NewAzure connects with a connection string and ensures the container exists.
func NewAzure(ctx context.Context, cfg config.StorageConfig) (*Azure, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	if _, err := client.CreateContainer(ctx, cfg.AzureContainer, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("azure create container %s: %w", cfg.AzureContainer, err)
	}
	return &Azure{client: client, container: cfg.AzureContainer}, nil
}

// Put uploads the object in blocks.
func (a *Azure) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := a.client.UploadStream(ctx, a.container, cleaned, r, opts); err != nil {
		return fmt.Errorf("azure put %s: %w", cleaned, err)
	}
	return nil
}

// Get streams the blob body.
func (a *Azure) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.DownloadStream(ctx, a.container, cleaned, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("azure get %s: %w", cleaned, err)
	}
	return resp.Body, nil
}

// Delete removes the blob.
func (a *Azure) Delete(ctx context.Context, key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := a.client.DeleteBlob(ctx, a.container, cleaned, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azure delete %s: %w", cleaned, err)
	}
	return nil
}
