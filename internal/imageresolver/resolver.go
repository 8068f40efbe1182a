package imageresolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultMIMEType       = "image/png"
	DefaultMaxBytes       = 8 << 20
	DefaultStorageBaseURL = "https://firebasestorage.googleapis.com"
)

var (
	// ErrUnresolvable is returned for references that cannot be mapped to bytes.
	ErrUnresolvable = errors.New("image reference cannot be resolved")
	// ErrTooLarge is returned when an image exceeds the size limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrForbiddenHost is returned for URLs pointing at loopback, private or
	// link-local addresses.
	ErrForbiddenHost = errors.New("image host is not public")
)

// Image is a resolved picture ready to be inlined into a judge request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Resolver turns an image reference into bytes. A reference is either an
// inline data: URI, an absolute http(s) URL or an opaque storage path
// ("gs://bucket/path" or a bare object path in the configured bucket).
type Resolver struct {
	client         *http.Client
	bucket         string
	storageBaseURL string
	maxBytes       int64
	privateHosts   bool
}

type Option func(*Resolver)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithStorageBaseURL overrides the public storage download host.
func WithStorageBaseURL(base string) Option {
	return func(r *Resolver) { r.storageBaseURL = strings.TrimRight(base, "/") }
}

func WithMaxBytes(n int64) Option {
	return func(r *Resolver) { r.maxBytes = n }
}

// WithPrivateHosts allows fetching from non-public addresses.
func WithPrivateHosts() Option {
	return func(r *Resolver) { r.privateHosts = true }
}

// New creates a Resolver that fetches with the given timeout and maps bare
// storage paths into bucket.
func New(fetchTimeout time.Duration, bucket string, opts ...Option) *Resolver {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	r := &Resolver{
		bucket:         bucket,
		storageBaseURL: DefaultStorageBaseURL,
		maxBytes:       DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: fetchTimeout, Transport: r.transport()}
	}
	return r
}

// transport refuses connections to non-public addresses at dial time, which
// also covers names resolving to them and redirects.
func (r *Resolver) transport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if r.privateHosts {
		return t
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if addr, err := netip.ParseAddr(host); err != nil || !isPublic(addr) {
				return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
			}
			return nil
		},
	}
	t.DialContext = dialer.DialContext
	t.Proxy = nil
	return t
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}

// Resolve returns the image behind ref. An empty ref yields (nil, nil).
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, nil
	case strings.HasPrefix(ref, "data:"):
		return r.decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetch(ctx, ref)
	}

	u, err := r.storageURL(ref)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, u)
}

// ResolveOrNil is Resolve with failures logged and reported as no image.
func (r *Resolver) ResolveOrNil(ctx context.Context, ref string) *Image {
	img, err := r.Resolve(ctx, ref)
	if err != nil {
		log.Warn("Continuing without image", "error", err, "ref", truncateRef(ref))
		return nil
	}
	return img
}

func (r *Resolver) storageURL(ref string) (string, error) {
	bucket, path := r.bucket, strings.TrimPrefix(ref, "/")
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		b, p, found := strings.Cut(rest, "/")
		if !found || b == "" || p == "" {
			return "", fmt.Errorf("%w: malformed storage uri", ErrUnresolvable)
		}
		bucket, path = b, p
	}
	if bucket == "" || path == "" {
		return "", fmt.Errorf("%w: no storage bucket configured", ErrUnresolvable)
	}
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media", r.storageBaseURL, url.PathEscape(bucket), url.PathEscape(path)), nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := r.checkHost(rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnresolvable)
	}
	return &Image{MIMEType: imageType(resp.Header.Get("Content-Type")), Data: data}, nil
}

// checkHost rejects literal non-public addresses and localhost before dialing.
func (r *Resolver) checkHost(rawURL string) error {
	if r.privateHosts {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !isPublic(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	return nil
}

// decodeDataURI parses "data:[<mime>][;base64],<payload>".
func (r *Resolver) decodeDataURI(ref string) (*Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data uri without payload", ErrUnresolvable)
	}
	mediaType, isBase64 := meta, false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		mediaType, isBase64 = m, true
	}

	if isBase64 && int64(base64.StdEncoding.DecodedLen(len(payload))) > r.maxBytes+2 {
		return nil, ErrTooLarge
	}

	var data []byte
	var err error
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some clients strip padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data uri", ErrUnresolvable)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, ErrTooLarge
	}
	return &Image{MIMEType: imageType(mediaType), Data: data}, nil
}

func imageType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return DefaultMIMEType
	}
	return mt
}

func truncateRef(ref string) string {
	if len(ref) > 64 {
		return ref[:64] + "..."
	}
	return ref
}
