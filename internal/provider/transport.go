package provider

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/rxtech-lab/merval-data/pkg/errors"
)

// newHTTPClient builds the outbound client shared by the JSON adapters.
// insecure skips TLS verification for endpoints serving self-signed
// certificates (byma, analisistecnico).
func newHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true // #nosec G402
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"

// httpGet performs one GET and classifies failures per the fetch taxonomy:
// timeouts and 5xx are transient, 429 is a rate-limit signal (also
// transient), any other 4xx is permanent.
func httpGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchPermanent, "failed to build request", err)
	}

	req.Header.Set("User-Agent", userAgent)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeCancelled, "request cancelled", ctx.Err())
		}

		return nil, errors.Wrap(errors.ErrCodeFetchTransient, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchTransient, "failed to read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Newf(errors.ErrCodeFetchRateLimited, "rate limited by %s", req.Host)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.Newf(errors.ErrCodeFetchTransient, "server error %d from %s", resp.StatusCode, req.Host)
	default:
		return nil, errors.Newf(errors.ErrCodeFetchPermanent, "status %d from %s", resp.StatusCode, req.Host)
	}
}
