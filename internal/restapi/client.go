package restapi

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/model"
	"github.com/dreamware/rgwsync/internal/syncparse"
)

// DefaultRegion is used for request signing when none is configured. The
// admin API ignores the region but the signature must name one.
const DefaultRegion = "us-east-1"

const (
	validateTimeout = 10 * time.Second
	statsTimeout    = 30 * time.Second
	maxErrorBody    = 300
	adminBucketPath = "/admin/bucket"
	signingService  = "s3"
)

var emptyPayloadHash = func() string {
	sum := sha256.Sum256(nil)
	return hex.EncodeToString(sum[:])
}()

// Options configures a Client.
type Options struct {
	// HTTPClient overrides the client built from VerifySSL.
	HTTPClient *http.Client
	AccessKey  string
	SecretKey  string
	Region     string
	VerifySSL  bool
}

// Client talks to one zone's admin REST API. Each validated zone owns its
// own Client and underlying http.Client.
type Client struct {
	http     *http.Client
	signer   *v4.Signer
	endpoint string
	region   string
	creds    aws.Credentials
}

// New creates a Client for endpoint. Trailing slashes are dropped.
func New(endpoint string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !opts.VerifySSL {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
		hc = &http.Client{Transport: transport}
	}
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}
	return &Client{
		http:     hc,
		signer:   v4.NewSigner(),
		endpoint: strings.TrimRight(endpoint, "/"),
		region:   region,
		creds: aws.Credentials{
			AccessKeyID:     opts.AccessKey,
			SecretAccessKey: opts.SecretKey,
			Source:          "rgwsync",
		},
	}
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// StatusError is a non-200 reply from the admin API.
type StatusError struct {
	Body   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("admin API returned %d: %s", e.Status, e.Body)
}

// Validation is the result of ValidateAccess. Status is 0 when the endpoint
// could not be reached.
type Validation struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status"`
	OK       bool   `json:"ok"`
}

// ValidateAccess checks that the endpoint answers and accepts the keys by
// requesting a single bucket's stats.
func (c *Client) ValidateAccess(ctx context.Context) Validation {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	_, err := c.get(ctx, url.Values{"format": {"json"}, "stats": {"True"}, "max-entries": {"1"}})
	if err == nil {
		return Validation{OK: true, Endpoint: c.endpoint, Status: http.StatusOK}
	}
	var se *StatusError
	if errors.As(err, &se) {
		return Validation{Endpoint: c.endpoint, Status: se.Status, Error: describeAdminError(se.Body)}
	}
	return Validation{Endpoint: c.endpoint, Error: "connection failed: " + err.Error()}
}

// BucketStats fetches statistics for every bucket the zone knows about.
func (c *Client) BucketStats(ctx context.Context) (map[string]model.BucketStats, error) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	body, err := c.get(ctx, url.Values{"format": {"json"}, "stats": {"True"}})
	if err != nil {
		return nil, err
	}
	doc, _, err := admin.ExtractJSON(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode bucket stats from %s: %w", c.endpoint, err)
	}
	return syncparse.DecodeBucketStats(doc), nil
}

func (c *Client) get(ctx context.Context, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+adminBucketPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := c.signer.SignHTTP(ctx, c.creds, req, emptyPayloadHash, signingService, c.region, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", c.endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// describeAdminError turns the common admin API error codes into an
// operator-facing hint.
func describeAdminError(body string) string {
	switch {
	case strings.Contains(body, "SignatureDoesNotMatch"):
		return "SignatureMismatch: access_key or secret_key is incorrect"
	case strings.Contains(body, "AccessDenied"):
		return "AccessDenied: user may lack admin caps (buckets=read)"
	case strings.Contains(body, "InvalidAccessKeyId"):
		return "InvalidAccessKeyId: access_key not found on this zone"
	default:
		return body
	}
}
