package cloudsdk

// Creator owns a created asset. Exactly one field is set.
type Creator struct {
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

type CreationContext struct {
	Creator Creator `json:"creator"`
}

// CreateAssetRequest is the JSON metadata part of an asset upload.
type CreateAssetRequest struct {
	AssetType       string          `json:"assetType"`
	DisplayName     string          `json:"displayName"`
	Description     string          `json:"description"`
	CreationContext CreationContext `json:"creationContext"`
}

// CreateAssetParams is one asset upload.
type CreateAssetParams struct {
	Request     CreateAssetRequest
	FileName    string
	ContentType string
	Content     []byte
}

// AssetResult is the payload of a finished create operation.
type AssetResult struct {
	Path        string `json:"path"`
	AssetID     string `json:"assetId"`
	DisplayName string `json:"displayName"`
	AssetType   string `json:"assetType"`
}

// Operation is a long-running server operation.
type Operation struct {
	Path        string       `json:"path"`
	OperationID string       `json:"operationId"`
	Done        bool         `json:"done"`
	Response    *AssetResult `json:"response,omitempty"`
	Error       *APIError    `json:"error,omitempty"`
}
