// Package phaidra implements the HTTP client for the external archive
// backend. The reference backend is a Phaidra-style JSON-LD repository; the
// rest of the service only depends on the operations and error classes
// exposed here.
package phaidra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/openfolio/archivesync/internal/config"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metadata"
)

var (
	// ErrAuthFailed is returned on an archive 403. Fatal: needs operator
	// attention, never retried automatically.
	ErrAuthFailed = errors.New("archive authentication failed")

	// ErrUnavailable is returned for any other non-2xx or
	// malformed-success response. Eligible for the queue's retry policy.
	ErrUnavailable = errors.New("archive service error")

	// ErrEmptyPID is returned when a nominally successful create carries no
	// persistent identifier.
	ErrEmptyPID = errors.New("archive returned empty pid")
)

// alertTypeSuccess is the only alert type the archive contract documents as
// non-failure; anything else in a 2xx payload is treated as failure.
const alertTypeSuccess = "success"

// Result carries the identifiers assigned by the archive.
type Result struct {
	PID string
	URI string
}

type archiveResponse struct {
	PID    string  `json:"pid"`
	Alerts []alert `json:"alerts,omitempty"`
}

type alert struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// Client performs the archive's HTTP operations.
type Client struct {
	baseURL        string
	username       string
	password       string
	identifierBase string
	client         *http.Client
	logger         logger.Logger
}

// NewClient creates an archive client.
func NewClient(cfg *config.ArchiveConfig, log logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("archive URL is required")
	}
	if cfg.IdentifierBase == "" {
		return nil, errors.New("archive identifier base is required")
	}

	return &Client{
		baseURL:        cfg.URL,
		username:       cfg.Username,
		password:       cfg.Password,
		identifierBase: cfg.IdentifierBase,
		client:         &http.Client{Timeout: cfg.Timeout},
		logger:         log,
	}, nil
}

// ObjectURI joins the configured identifier base with a PID.
func (c *Client) ObjectURI(pid string) string {
	return c.identifierBase + pid
}

// CreateContainer creates the container object for an entry and returns the
// assigned PID.
func (c *Client) CreateContainer(ctx context.Context, doc metadata.Document) (*Result, error) {
	endpoint := fmt.Sprintf("%s/object/create", c.baseURL)
	resp, err := c.postMetadata(ctx, endpoint, doc, "", nil)
	if err != nil {
		return nil, err
	}
	return c.resultFromCreate(resp)
}

// UpdateContainer replaces the metadata of an existing container. Success
// requires a positive acknowledgment: a 2xx response whose alerts, if any,
// are all of the documented success type.
func (c *Client) UpdateContainer(ctx context.Context, pid string, doc metadata.Document) error {
	endpoint := fmt.Sprintf("%s/object/%s/metadata", c.baseURL, pid)
	_, err := c.postMetadata(ctx, endpoint, doc, "", nil)
	return err
}

// UpdateMember replaces the metadata of an existing member object. The
// archive exposes the same metadata endpoint for containers and members.
func (c *Client) UpdateMember(ctx context.Context, pid string, doc metadata.Document) error {
	return c.UpdateContainer(ctx, pid, doc)
}

// CreateMember creates a member object carrying a media file and returns the
// assigned PID.
func (c *Client) CreateMember(ctx context.Context, doc metadata.Document, fileName string, file io.Reader) (*Result, error) {
	endpoint := fmt.Sprintf("%s/object/create", c.baseURL)
	resp, err := c.postMetadata(ctx, endpoint, doc, fileName, file)
	if err != nil {
		return nil, err
	}
	return c.resultFromCreate(resp)
}

// Link records the member-of relationship between a member and its
// container.
func (c *Client) Link(ctx context.Context, containerPID, memberPID string) error {
	endpoint := fmt.Sprintf("%s/object/%s/relationship/add", c.baseURL, memberPID)

	payload := map[string]string{
		"predicate": "http://fedora.info/definitions/v4/rels-ext#isMemberOf",
		"object":    "info:fedora/" + containerPID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal relationship payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("link member: %w", err)
	}
	defer resp.Body.Close()

	if _, err := c.classify(resp, endpoint, time.Since(start)); err != nil {
		return err
	}
	return nil
}

// postMetadata POSTs a multipart request with a metadata part and an
// optional file part, then classifies the response.
func (c *Client) postMetadata(ctx context.Context, endpoint string, doc metadata.Document, fileName string, file io.Reader) (*archiveResponse, error) {
	metadataJSON, err := json.Marshal(map[string]any{"metadata": doc})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormField("metadata")
	if err != nil {
		return nil, fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := part.Write(metadataJSON); err != nil {
		return nil, fmt.Errorf("write metadata part: %w", err)
	}

	if file != nil {
		filePart, partErr := writer.CreateFormFile("file", fileName)
		if partErr != nil {
			return nil, fmt.Errorf("create file part: %w", partErr)
		}
		if _, copyErr := io.Copy(filePart, file); copyErr != nil {
			return nil, fmt.Errorf("write file part: %w", copyErr)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(c.username, c.password)

	start := time.Now()
	resp, err := c.client.Do(req)
	requestDuration := time.Since(start)

	if err != nil {
		c.logger.Error("Archive request failed",
			logger.String("endpoint", endpoint),
			logger.Duration("request_duration", requestDuration),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	return c.classify(resp, endpoint, requestDuration)
}

// classify maps an archive HTTP response onto the error taxonomy: 403 is an
// authentication failure, any other non-2xx is a transient service error,
// and a 2xx payload carrying a non-success alert is still a failure.
func (c *Client) classify(resp *http.Response, endpoint string, requestDuration time.Duration) (*archiveResponse, error) {
	bodyBytes, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, readErr)
	}

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Error("Archive rejected credentials",
			logger.String("endpoint", endpoint),
			logger.Int("status_code", resp.StatusCode),
			logger.Duration("request_duration", requestDuration),
		)
		return nil, ErrAuthFailed
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= 300 {
		c.logger.Error("Archive returned error status",
			logger.String("endpoint", endpoint),
			logger.Int("status_code", resp.StatusCode),
			logger.String("response_body", string(bodyBytes)),
			logger.Duration("request_duration", requestDuration),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var archResp archiveResponse
	if len(bodyBytes) > 0 {
		if decodeErr := json.Unmarshal(bodyBytes, &archResp); decodeErr != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, decodeErr)
		}
	}

	for _, a := range archResp.Alerts {
		if a.Type != alertTypeSuccess {
			c.logger.Error("Archive reported failure in success response",
				logger.String("endpoint", endpoint),
				logger.String("alert_type", a.Type),
				logger.String("alert_msg", a.Msg),
				logger.Duration("request_duration", requestDuration),
			)
			return nil, fmt.Errorf("%w: alert %s: %s", ErrUnavailable, a.Type, a.Msg)
		}
	}

	c.logger.Debug("Archive request succeeded",
		logger.String("endpoint", endpoint),
		logger.String("pid", archResp.PID),
		logger.Duration("request_duration", requestDuration),
	)
	return &archResp, nil
}

func (c *Client) resultFromCreate(resp *archiveResponse) (*Result, error) {
	if resp.PID == "" {
		return nil, ErrEmptyPID
	}
	return &Result{PID: resp.PID, URI: c.ObjectURI(resp.PID)}, nil
}
