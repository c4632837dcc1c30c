package messaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPTransport returns a Transport that POSTs envelopes to a peer's
// message route. It is how the transient popup context reaches the daemon.
// A connection failure or a 503 from the peer is reported as
// ErrPeerUnreachable so the caller's recovery path matches the in-process
// behavior.
func HTTPTransport(url string, client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("messaging: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, &ErrPeerUnreachable{Cause: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("messaging: read response: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusServiceUnavailable:
			return nil, &ErrPeerUnreachable{}
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("messaging: peer returned status %d", resp.StatusCode)
		}
		return body, nil
	}
}

// HTTPHandler adapts a Handler into an http.HandlerFunc for mounting on
// the daemon's router. A stopped Handler answers 503, which HTTPTransport
// converts back into ErrPeerUnreachable on the sending side.
func HTTPHandler(h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		raw, err := h.Serve(r.Context(), payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}
