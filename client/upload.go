// Device data upload: stateless pass-through to the upload host.
package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tidewatch/tidesync/domain"
)

// UploadDeviceData posts a batch of device records to the upload base URL
// (a distinct host from the API). Records without an upload id get one
// assigned. The server answers with the indices of records it already
// held; they are logged and returned, and nothing is written to the cache.
func (c *Client) UploadDeviceData(ctx context.Context, batch []domain.DeviceData) ([]int, error) {
	headers, err := c.sessionHeaders()
	if err != nil {
		return nil, err
	}
	for i := range batch {
		if batch[i].UploadID == "" {
			batch[i].UploadID = uuid.NewString()
		}
	}
	body, err := encodeDeviceData(batch)
	if err != nil {
		return nil, err
	}

	reqURL := c.env.uploadURL("/data/")
	_, _, respBody, err := c.do(ctx, "UploadDeviceData", http.MethodPost, reqURL, headers, body)
	if err != nil {
		return nil, err
	}

	var duplicates []int
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &duplicates); err != nil {
			return nil, err
		}
	}
	if len(duplicates) > 0 {
		log.Info().Ints("indices", duplicates).Msg("server reported duplicate device data")
	}
	return duplicates, nil
}
