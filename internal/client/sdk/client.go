// Package sdk is the thin HTTP client the sync engine uses to speak the
// Manifest Service's contract: GET/PUT /manifest, the three /files/*
// presigned-URL and delete routes, plus the raw PUT/GET against the
// presigned URLs themselves. Grounded on the reference architecture's
// own SDK client construction (imroc/req with typed success/error
// results), narrowed to this protocol's five routes.
package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"

	"github.com/vaultsync/vaultsync/internal/vaultmodel"
	"github.com/vaultsync/vaultsync/internal/version"
)

const (
	routeManifest    = "/manifest"
	routeUploadURL   = "/files/upload-url"
	routeDownloadURL = "/files/download-url"
	routeDeleteFiles = "/files/delete"
	headerUserAgent  = "User-Agent"
	headerAuthz      = "Authorization"
	headerIfMatch    = "If-Match"
)

// Client is the Manifest Service API client for a single device.
type Client struct {
	http *req.Client
}

// New builds a Client bound to serverURL, authenticating every request
// with the given device bearer token.
func New(serverURL, deviceToken string) *Client {
	c := req.C().
		SetBaseURL(serverURL).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 4*time.Second).
		SetCommonHeader(headerUserAgent, "vaultsync/"+version.Version).
		SetCommonHeader(headerAuthz, "Bearer "+deviceToken)

	return &Client{http: c}
}

type manifestWire struct {
	Manifest *vaultmodel.SyncManifest `json:"manifest"`
	ETag     *string                  `json:"etag"`
}

// GetManifest fetches the current manifest and its ETag. An empty ETag
// means no manifest has ever been committed.
func (c *Client) GetManifest(ctx context.Context) (*vaultmodel.SyncManifest, string, error) {
	var wire manifestWire
	var apiErr APIError

	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&wire).
		SetErrorResult(&apiErr).
		Get(routeManifest)

	if err := handleResponse(resp, err, "get manifest"); err != nil {
		return nil, "", err
	}

	etag := ""
	if wire.ETag != nil {
		etag = *wire.ETag
	}
	return wire.Manifest, etag, nil
}

// PutManifest commits a new manifest under optimistic concurrency.
// ifMatch is empty for the very first commit. Returns the new ETag, or
// ErrPreconditionRequired/ErrPreconditionFailed on a 428/412.
func (c *Client) PutManifest(ctx context.Context, manifest *vaultmodel.SyncManifest, ifMatch string) (string, error) {
	var wire manifestWire
	var apiErr APIError

	rb := c.http.R().
		SetContext(ctx).
		SetBody(manifest).
		SetSuccessResult(&wire).
		SetErrorResult(&apiErr)

	if ifMatch != "" {
		rb = rb.SetHeader(headerIfMatch, ifMatch)
	}

	resp, err := rb.Put(routeManifest)
	if err := handleResponse(resp, err, "put manifest"); err != nil {
		return "", err
	}

	if wire.ETag == nil {
		return "", fmt.Errorf("put manifest: server returned no etag")
	}
	return *wire.ETag, nil
}

type urlResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadURL requests a presigned PUT URL for path/hash.
func (c *Client) UploadURL(ctx context.Context, path, hash string) (string, time.Time, error) {
	var wire urlResponse
	var apiErr APIError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"path": path, "hash": hash}).
		SetSuccessResult(&wire).
		SetErrorResult(&apiErr).
		Post(routeUploadURL)

	if err := handleResponse(resp, err, "request upload url"); err != nil {
		return "", time.Time{}, err
	}
	return wire.URL, wire.ExpiresAt, nil
}

// DownloadURL requests a presigned GET URL for path.
func (c *Client) DownloadURL(ctx context.Context, path string) (string, time.Time, error) {
	var wire urlResponse
	var apiErr APIError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"path": path}).
		SetSuccessResult(&wire).
		SetErrorResult(&apiErr).
		Post(routeDownloadURL)

	if err := handleResponse(resp, err, "request download url"); err != nil {
		return "", time.Time{}, err
	}
	return wire.URL, wire.ExpiresAt, nil
}

type deleteResponse struct {
	OK      bool     `json:"ok"`
	Deleted []string `json:"deleted"`
}

// DeleteFiles issues a bulk delete for every listed path.
func (c *Client) DeleteFiles(ctx context.Context, paths []string) ([]string, error) {
	var wire deleteResponse
	var apiErr APIError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string][]string{"paths": paths}).
		SetSuccessResult(&wire).
		SetErrorResult(&apiErr).
		Post(routeDeleteFiles)

	if err := handleResponse(resp, err, "delete files"); err != nil {
		return nil, err
	}
	return wire.Deleted, nil
}

// UploadToPresignedURL PUTs content to a previously issued presigned URL.
// This is a plain request to the object store, not to the Manifest
// Service, so it carries no device bearer token.
func (c *Client) UploadToPresignedURL(ctx context.Context, url string, content []byte) error {
	resp, err := req.C().R().
		SetContext(ctx).
		SetBody(content).
		Put(url)
	if err != nil {
		return fmt.Errorf("upload to presigned url: %w", err)
	}
	if resp.IsErrorState() {
		return fmt.Errorf("upload to presigned url: %s", resp.String())
	}
	return nil
}

// DownloadFromPresignedURL GETs content from a previously issued
// presigned URL.
func (c *Client) DownloadFromPresignedURL(ctx context.Context, url string) ([]byte, error) {
	resp, err := req.C().R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download from presigned url: %w", err)
	}
	if resp.IsErrorState() {
		return nil, fmt.Errorf("download from presigned url: %s", resp.String())
	}
	return resp.Bytes(), nil
}
