package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is the provider's verdict on an echoed notification.
type Result string

const (
	ResultVerified    Result = "verified"
	ResultInvalid     Result = "invalid"
	ResultUnreachable Result = "unreachable"
)

const (
	liveHost    = "ipn.gateway.example.com"
	sandboxHost = "ipn.sandbox.gateway.example.com"

	validatePath = "/cgi-bin/webscr"
	validateCmd  = "cmd=_notify-validate"

	verifyTimeout   = 30 * time.Second
	maxResponseSize = 1 << 16
)

// Verifier re-validates inbound notifications by echoing them back to the
// payment provider's validation endpoint.
type Verifier struct {
	endpoint string
	host     string
	client   *http.Client
}

// NewVerifier builds a Verifier against the production or sandbox host.
func NewVerifier(sandbox bool) *Verifier {
	host := liveHost
	if sandbox {
		host = sandboxHost
	}
	return &Verifier{
		endpoint: "https://" + host + validatePath,
		host:     host,
		client:   &http.Client{Timeout: verifyTimeout},
	}
}

// WithEndpoint overrides the validation URL. Used by tests.
func (v *Verifier) WithEndpoint(endpoint string) *Verifier {
	v.endpoint = endpoint
	return v
}

// Verify posts the notification back to the provider and interprets the
// literal response body. A non-nil error only accompanies ResultUnreachable
// and carries the transport detail for the operator log.
func (v *Verifier) Verify(ctx context.Context, n Notification) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(echoBody(n)))
	if err != nil {
		return ResultUnreachable, fmt.Errorf("gateway: build validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = v.host

	resp, err := v.client.Do(req)
	if err != nil {
		return ResultUnreachable, fmt.Errorf("gateway: post validation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return ResultUnreachable, fmt.Errorf("gateway: read validation response: %w", err)
	}

	switch string(body) {
	case "VERIFIED":
		return ResultVerified, nil
	case "INVALID":
		return ResultInvalid, nil
	default:
		return ResultUnreachable, fmt.Errorf("gateway: unexpected validation response %q (status %d)", truncate(string(body), 64), resp.StatusCode)
	}
}

// echoBody rebuilds the received payload, prefixed with the validate command,
// every field in receipt order with the value URL-encoded.
func echoBody(n Notification) string {
	var b strings.Builder
	b.WriteString(validateCmd)
	for _, f := range n.Fields() {
		b.WriteByte('&')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
