package inference

import (
	"VisionGuard/internal/entity"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

type httpDetector struct {
	url    string
	model  string
	client *resty.Client
}

// NewHTTPDetector returns a detector that posts each image as multipart
// form data to url.
func NewHTTPDetector(url string, model string, timeout time.Duration) Detector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &httpDetector{
		url:    url,
		model:  model,
		client: client,
	}
}

func (d *httpDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]entity.Detection, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetFileReader("file", "image.jpg", bytes.NewReader(image)).
		SetFormData(map[string]string{
			"conf":  strconv.FormatFloat(threshold, 'f', -1, 64),
			"model": d.model,
		}).
		Post(d.url)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode())
	}

	return decodeResponse(resp.Body())
}

func (d *httpDetector) Close() error {
	return nil
}
