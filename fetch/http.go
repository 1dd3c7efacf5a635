package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// HTTPOptions configures an HTTP fetcher.
type HTTPOptions struct {
	// Client is used as is when set; the options below are then ignored.
	Client *http.Client
	// BaseURL resolves sources that are not absolute URLs.
	BaseURL string
	// HTTP3 sends requests over QUIC.
	HTTP3     bool
	TLSConfig *tls.Config
}

// HTTP fetches items with net/http.
type HTTP struct {
	client *http.Client
	base   *url.URL
}

// NewHTTP returns an HTTP fetcher.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	h := &HTTP{client: opts.Client}
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		h.base = base
	}
	if h.client == nil {
		h.client = &http.Client{}
		if opts.HTTP3 {
			h.client.Transport = &http3.Transport{
				TLSClientConfig: opts.TLSConfig,
				QUICConfig: &quic.Config{
					KeepAlivePeriod: 10 * time.Second,
					MaxIdleTimeout:  30 * time.Second,
				},
			}
		} else if opts.TLSConfig != nil {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = opts.TLSConfig
			h.client.Transport = tr
		}
	}
	return h, nil
}

// Close releases idle connections, including QUIC ones.
func (h *HTTP) Close() error {
	if tr, ok := h.client.Transport.(*http3.Transport); ok {
		return tr.Close()
	}
	h.client.CloseIdleConnections()
	return nil
}

func (h *HTTP) resolve(src string) (*url.URL, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, err
	}
	if h.base != nil {
		return h.base.ResolveReference(u), nil
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("relative source without base url")
	}
	return u, nil
}

func (h *HTTP) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	it := req.Item
	u, err := h.resolve(it.Src)
	if err != nil {
		return nil, err
	}
	method := it.Method
	if method == "" {
		method = http.MethodGet
	}

	var body *strings.Reader
	if len(it.Values) > 0 {
		values := url.Values{}
		for k, v := range it.Values {
			values.Set(k, v)
		}
		if method == http.MethodPost {
			body = strings.NewReader(values.Encode())
		} else {
			q := u.Query()
			for k := range values {
				q.Set(k, values.Get(k))
			}
			u.RawQuery = q.Encode()
		}
	}

	var r *http.Request
	if body != nil {
		r, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		r, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if it.MimeType != "" {
		r.Header.Set("Accept", it.MimeType)
	}
	for k, v := range it.Headers {
		r.Header.Set(k, v)
	}
	return r, nil
}

// Fetch performs the request described by the item and returns the body.
// Responses outside 2xx fail with preload.ErrFileLoad.
func (h *HTTP) Fetch(ctx context.Context, req Request) ([]byte, error) {
	r, err := h.newRequest(ctx, req)
	if err != nil {
		return nil, fileError(req.Item.Src, fmt.Errorf("create request: %w", err))
	}
	resp, err := h.client.Do(r)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fileError(req.Item.Src, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fileError(req.Item.Src, fmt.Errorf("server returned %d", resp.StatusCode))
	}
	data, err := readAll(ctx, resp.Body, resp.ContentLength, req.Progress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fileError(req.Item.Src, fmt.Errorf("read response: %w", err))
	}
	return data, nil
}
