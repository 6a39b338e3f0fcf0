package cloudsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/imroc/req/v3"
)

const (
	v1Assets     = "/assets/v1/assets"
	v1Operations = "/assets/v1/operations/{operationId}"
)

type AssetsAPI struct {
	client *req.Client
}

func newAssetsAPI(client *req.Client) *AssetsAPI {
	return &AssetsAPI{client: client}
}

// Create uploads an asset and returns the operation tracking its processing.
func (a *AssetsAPI) Create(ctx context.Context, params *CreateAssetParams) (*Operation, error) {
	meta, err := jsonMarshal(params.Request)
	if err != nil {
		return nil, fmt.Errorf("encode asset request: %w", err)
	}

	content := params.Content
	var op *Operation
	resp, err := a.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetFormData(map[string]string{"request": string(meta)}).
		SetFileUpload(req.FileUpload{
			ParamName: "fileContent",
			FileName:  params.FileName,
			GetFileContent: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(content)), nil
			},
			FileSize:    int64(len(content)),
			ContentType: params.ContentType,
		}).
		SetSuccessResult(&op).
		Post(v1Assets)

	if err := handleAPIError(resp, err, "asset create"); err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("asset create: empty response")
	}
	return op, nil
}

// GetOperation fetches the current state of an operation.
func (a *AssetsAPI) GetOperation(ctx context.Context, operationID string) (*Operation, error) {
	var op *Operation
	resp, err := a.client.R().
		SetContext(ctx).
		SetPathParam("operationId", operationID).
		SetSuccessResult(&op).
		Get(v1Operations)

	if err := handleAPIError(resp, err, "get operation"); err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("get operation: empty response")
	}
	return op, nil
}

// ID returns the operation id, falling back to the last segment of its path.
func (op *Operation) ID() string {
	if op.OperationID != "" {
		return op.OperationID
	}
	for i := len(op.Path) - 1; i >= 0; i-- {
		if op.Path[i] == '/' {
			return op.Path[i+1:]
		}
	}
	return op.Path
}
