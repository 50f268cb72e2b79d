package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.dedis.ch/forecast/confidential"
	"golang.org/x/xerrors"
)

// ReencryptPath is the path of the re-encryption endpoint of the proxy.
const ReencryptPath = "/reencrypt"

// HTTPRelayer sends the re-encryption requests to the HTTP proxy of a node.
//
// - implements confidential.Relayer
type HTTPRelayer struct {
	url    string
	client *http.Client
}

// NewHTTPRelayer returns a relayer for the proxy listening at the base URL.
func NewHTTPRelayer(baseURL string) HTTPRelayer {
	return HTTPRelayer{
		url:    baseURL + ReencryptPath,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Reencrypt implements confidential.Relayer.
func (r HTTPRelayer) Reencrypt(ctx context.Context, req confidential.ReencryptRequest) (confidential.Ciphertext, error) {
	var ct confidential.Ciphertext

	body, err := json.Marshal(req)
	if err != nil {
		return ct, xerrors.Errorf("failed to encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return ct, xerrors.Errorf("failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return ct, xerrors.Errorf("request failed: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ct, xerrors.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	err = json.NewDecoder(resp.Body).Decode(&ct)
	if err != nil {
		return ct, xerrors.Errorf("failed to decode response: %v", err)
	}

	return ct, nil
}
