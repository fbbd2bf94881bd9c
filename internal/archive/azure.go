package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBackend uploads crops as block blobs to an Azure Storage container.
type AzureBackend struct {
	container string
	client    *azblob.Client
}

// NewAzureBackend creates an AzureBackend authenticated with a shared-key
// credential derived from accountURL's hostname and accountKey.
func NewAzureBackend(accountURL, accountKey, container string) *AzureBackend {
	accountName := accountNameFromURL(accountURL)
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		log.Error("failed to build azure shared key credential, azure archival will fail", "error", err)
		return &AzureBackend{container: container}
	}
	client, err := azblob.NewClientWithSharedKeyCredential(accountURL, cred, nil)
	if err != nil {
		log.Error("failed to create azure blob client, azure archival will fail", "error", err)
		return &AzureBackend{container: container}
	}
	return &AzureBackend{container: container, client: client}
}

func accountNameFromURL(accountURL string) string {
	u, err := url.Parse(accountURL)
	if err != nil {
		return ""
	}
	return strings.SplitN(u.Hostname(), ".", 2)[0]
}

func (b *AzureBackend) Name() string { return "azure" }

// Upload uploads localPath as blob key in the configured container.
func (b *AzureBackend) Upload(ctx context.Context, localPath, key string) error {
	if b.client == nil {
		return fmt.Errorf("azure backend not initialized (see earlier config error)")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open crop file: %w", err)
	}
	defer f.Close()

	_, err = b.client.UploadFile(ctx, b.container, key, f, nil)
	if err != nil {
		return fmt.Errorf("azure upload: %w", err)
	}
	return nil
}
