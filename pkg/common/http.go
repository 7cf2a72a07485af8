package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxDownloadSize anything bigger is not a business card photo.
const MaxDownloadSize = 32 << 20

var ErrDownloadTooLarge = errors.New("download exceeds the size limit")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// ReadAllFromURL reads all content from the URL, up to MaxDownloadSize bytes.
func ReadAllFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, res.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(res.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > MaxDownloadSize {
		return nil, ErrDownloadTooLarge
	}
	return content, nil
}
