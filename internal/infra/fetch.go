// Package infra holds the chat transports and helpers shared between them.
package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetch opens the body of url. The caller closes it.
func Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s, status: %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
