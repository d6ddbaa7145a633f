package ai

import "context"

// AssetState is the processing state of an uploaded asset.
type AssetState string

const (
	AssetProcessing AssetState = "PROCESSING"
	AssetReady      AssetState = "READY"
	AssetFailed     AssetState = "FAILED"
)

// Asset is the handle the remote service returns for an uploaded video.
type Asset struct {
	Name     string
	URI      string
	MimeType string
	State    AssetState
}

// Gateway is the port to a hosted multimodal model.
type Gateway interface {
	// UploadAsset submits the local file. The returned asset is usually still processing.
	UploadAsset(ctx context.Context, path string) (Asset, error)
	// AwaitReady polls until the asset is ready, failed or the poll budget runs out.
	AwaitReady(ctx context.Context, asset Asset) (Asset, error)
	// Generate runs one generation request over a ready asset and returns the raw text.
	Generate(ctx context.Context, asset Asset, prompt string) (string, error)
}

// Releaser is implemented by gateways that can delete an asset once a run is over.
type Releaser interface {
	Release(ctx context.Context, asset Asset) error
}
