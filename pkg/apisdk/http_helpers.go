package apisdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// response is a fully read HTTP response. Bodies are read inside the attempt's
// timeout so a stalled body counts as a network failure.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// payload returns the body as raw JSON when the response declares a JSON media
// type and is not empty. Anything else yields nil.
func (r *response) payload() json.RawMessage {
	if !isJSON(r.header.Get("Content-Type")) {
		return nil
	}
	trimmed := bytes.TrimSpace(r.body)
	if len(trimmed) == 0 {
		return nil
	}
	return json.RawMessage(trimmed)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// send performs one network attempt. token, when set, is sent as a Bearer
// credential. Transport failures and timeouts come back as KindNetwork.
func (c *SDKClient) send(
	ctx context.Context,
	method, path string,
	payload []byte,
	token string,
) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, networkError(method, path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(method, path, fmt.Errorf("failed to read response body: %w", err))
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   bodyBytes,
	}, nil
}

// sendJSON is send for the unauthenticated endpoints: body is marshalled, a
// non-2xx becomes a classified error and the JSON reply is decoded into out.
func (c *SDKClient) sendJSON(
	ctx context.Context,
	method, path string,
	body any,
	token string,
	out any,
) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return classifyStatus(method, path, resp.status, resp.body)
	}

	return decodePayload(resp.payload(), out)
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return payload, nil
}

// decodePayload decodes raw into out when both are present.
func decodePayload(raw json.RawMessage, out any) error {
	if raw == nil || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
