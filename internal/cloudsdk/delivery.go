package cloudsdk

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/imroc/req/v3"
)

const v1Asset = "/v1/asset"

// the delivery payload of a decal references its image asset by url
var textureIDPattern = regexp.MustCompile(`<url>[^<]*?[?&]id=(\d+)</url>`)

type DeliveryAPI struct {
	client  *req.Client
	baseURL string
}

func newDeliveryAPI(client *req.Client, baseURL string) *DeliveryAPI {
	return &DeliveryAPI{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// TextureID resolves the image asset id behind a decal asset id.
func (d *DeliveryAPI) TextureID(ctx context.Context, decalID string) (string, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("id", decalID).
		Get(d.baseURL + v1Asset)

	if err := handleAPIError(resp, err, "asset delivery"); err != nil {
		return "", err
	}

	m := textureIDPattern.FindStringSubmatch(resp.String())
	if m == nil {
		return "", fmt.Errorf("decal %s: %w", decalID, ErrNoTextureID)
	}
	return m[1], nil
}
