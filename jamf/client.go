// Package jamf publishes serialized configuration profiles to a Jamf
// Pro management server through its classic API. Publishing is
// idempotent per profile name: re-publishing updates the existing
// server side resource instead of duplicating it.
package jamf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/Aussie-Nomad/MacForge-sub002/version"
)

const (
	pingPath     = "/JSSCheckConnection"
	profilesPath = "/JSSResource/osxconfigurationprofiles"

	// distributionMethod is fixed; targeting is managed server side.
	distributionMethod = "Install Automatically"

	defaultMetaTimeout   = 15 * time.Second
	defaultUploadTimeout = 2 * time.Minute
)

// APIError is an HTTP status failure from the management server. The
// server message, when present, is surfaced verbatim so an operator can
// diagnose configuration problems on the MDM side.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("jamf: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("jamf: server returned %d: %s", e.StatusCode, e.Message)
}

// Receipt describes a completed publish.
type Receipt struct {
	// Updated is true when the publish converged through the update
	// path rather than creating a new resource.
	Updated bool
	// Requests counts the HTTP round trips the publish took.
	Requests int
}

// Client talks to one Jamf Pro server with one session token. The token
// is obtained out of band; an expired token surfaces as a 401 APIError
// and the caller re-authenticates and retries the whole publish.
type Client struct {
	baseURL       *url.URL
	token         string
	userAgent     string
	client        *http.Client
	metaTimeout   time.Duration
	uploadTimeout time.Duration
	logger        log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.client = c }
}

// WithUserAgent overrides the product identifying user agent.
func WithUserAgent(ua string) Option {
	return func(client *Client) { client.userAgent = ua }
}

// WithTimeouts sets the per call timeouts: meta covers the connectivity
// probe and by-name lookups, upload covers the create and update calls
// that carry the payload blob.
func WithTimeouts(meta, upload time.Duration) Option {
	return func(client *Client) {
		client.metaTimeout = meta
		client.uploadTimeout = upload
	}
}

// WithLogger adds a logger to the client.
func WithLogger(logger log.Logger) Option {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a client for the server at baseURL using the given
// bearer token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse jamf base url")
	}
	if token == "" {
		return nil, errors.New("jamf: empty session token")
	}
	client := &Client{
		baseURL:       u,
		token:         token,
		userAgent:     "MacForge/" + version.Version().Version,
		client:        http.DefaultClient,
		metaTimeout:   defaultMetaTimeout,
		uploadTimeout: defaultUploadTimeout,
		logger:        log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// profileEnvelope is the legacy XML wrapper the classic API expects on
// create and update.
type profileEnvelope struct {
	XMLName xml.Name        `xml:"os_x_configuration_profile"`
	General envelopeGeneral `xml:"general"`
}

type envelopeGeneral struct {
	Name               string `xml:"name"`
	DistributionMethod string `xml:"distribution_method"`
	Payloads           string `xml:"payloads"`
}

func envelope(name string, payload []byte) ([]byte, error) {
	env := profileEnvelope{
		General: envelopeGeneral{
			Name:               name,
			DistributionMethod: distributionMethod,
			Payloads:           base64.StdEncoding.EncodeToString(payload),
		},
	}
	body, err := xml.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, "encode profile envelope")
	}
	return append([]byte(xml.Header), body...), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build jamf request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}
	return req, nil
}

// do runs one round trip and reads the body. Transport failures,
// timeouts included, are wrapped; the caller decides what a status code
// means.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "jamf: %s %s", method, path)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "jamf: read %s %s response", method, path)
	}
	return resp.StatusCode, respBody, nil
}

// Ping probes connectivity and authentication without touching any
// profile resource.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, c.metaTimeout, http.MethodGet, pingPath, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return nil
}

func byNamePath(name string) string {
	return profilesPath + "/name/" + url.PathEscape(name)
}

// Publish pushes serialized profile bytes to the named slot on the
// server. A first publish creates the resource; a re-publish under the
// same name observes the 409 name collision, resolves the existing
// resource by name and updates it in place. The only silent retry is a
// single repeated create when the conflicting resource vanishes between
// the collision and the lookup.
func (c *Client) Publish(ctx context.Context, name string, payload []byte) (*Receipt, error) {
	body, err := envelope(name, payload)
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{}

	status, respBody, err := c.create(ctx, receipt, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusConflict {
		if created(status) {
			c.logger.Log("msg", "profile created", "profile", name, "requests", receipt.Requests)
			return receipt, nil
		}
		return nil, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
	}

	// name collision: resolve the existing resource
	status, respBody, err = c.do(ctx, c.metaTimeout, http.MethodGet, byNamePath(name), nil)
	receipt.Requests++
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		// the conflicting profile vanished between the collision and
		// the lookup. Retry the create exactly once.
		status, respBody, err = c.create(ctx, receipt, body)
		if err != nil {
			return nil, err
		}
		if created(status) {
			c.logger.Log("msg", "profile created after vanished conflict", "profile", name, "requests", receipt.Requests)
			return receipt, nil
		}
		return nil, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
	case status != http.StatusOK:
		return nil, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
	}

	status, respBody, err = c.do(ctx, c.uploadTimeout, http.MethodPut, byNamePath(name), body)
	receipt.Requests++
	if err != nil {
		return nil, err
	}
	if !created(status) {
		return nil, &APIError{StatusCode: status, Message: strings.TrimSpace(string(respBody))}
	}
	receipt.Updated = true
	c.logger.Log("msg", "profile updated", "profile", name, "requests", receipt.Requests)
	return receipt, nil
}

func (c *Client) create(ctx context.Context, receipt *Receipt, body []byte) (int, []byte, error) {
	status, respBody, err := c.do(ctx, c.uploadTimeout, http.MethodPost, profilesPath+"/id/0", body)
	receipt.Requests++
	return status, respBody, err
}

func created(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}
