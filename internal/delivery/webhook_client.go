package delivery

import (
	"net/http"

	"github.com/worldline-go/klient"
)

// WebhookClient sends the outbound delivery HTTP request. Built on klient
// rather than a bare *http.Client, matching the pack's repeated idiom:
// a package-level klient.Client wrapping *http.Client, invoked through
// client.HTTP.Do(req) against a hand-built *http.Request.
type WebhookClient struct {
	client *klient.Client
}

// NewWebhookClient builds a WebhookClient. Redirect following and base-URL
// checks are disabled since destinations are arbitrary third-party URLs
// supplied at intake-definition time, not a fixed upstream.
func NewWebhookClient() (*WebhookClient, error) {
	c, err := klient.New(
		klient.WithDisableBaseURLCheck(true),
		klient.WithDisableEnvValues(true),
		klient.WithDisableRetry(true), // this package's own RetryPolicy owns retries
	)
	if err != nil {
		return nil, err
	}
	return &WebhookClient{client: c}, nil
}

// Do sends req and returns the raw response; callers are responsible for
// closing resp.Body.
func (w *WebhookClient) Do(req *http.Request) (*http.Response, error) {
	return w.client.HTTP.Do(req)
}
