package wait

import (
	"bytes"
	"context"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"
)

// HTTPMatcher inspects a response and reports whether it satisfies
// readiness. It receives the full response (body already buffered into
// resp.Body as a bytes.Reader) so matchers can inspect status, headers, and
// body without juggling stream-consumption ordering.
type HTTPMatcher func(resp *http.Response) bool

// StatusOK is the default matcher: any 2xx response is considered ready.
func StatusOK(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// HTTP polls an HTTP(S) endpoint on one of the container's exposed ports
// until Matcher reports true. Network and HTTP-level errors are treated as
// "not ready yet" and retried; only errors that preclude retrying at all
// (no usable port) are returned.
type HTTP struct {
	base

	Path   string
	Port   int // zero: use target's first exposed port
	Method string
	Headers http.Header
	Body    []byte

	TLS bool

	Matcher HTTPMatcher

	PollInterval time.Duration
}

func (h HTTP) WaitUntilReady(ctx context.Context, client DaemonClient, target Target) error {
	port := h.Port
	if port == 0 {
		if len(target.ExposedPorts) == 0 {
			return &ErrHTTP{Op: "resolve-port", Err: ErrNoExposedPort}
		}
		port = target.ExposedPorts[0]
	}

	state, err := client.Inspect(ctx, target.ContainerID)
	if err != nil {
		return &ErrHTTP{Op: "inspect", Err: err}
	}

	hostPort, err := resolveHostPort(state, port, target.DaemonHost)
	if err != nil {
		return &ErrHTTP{Op: "resolve-port", Err: err}
	}

	scheme := "http"
	if h.TLS {
		scheme = "https"
	}
	url := scheme + "://" + hostPort + h.Path

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	matcher := h.Matcher
	if matcher == nil {
		matcher = StatusOK
	}

	interval := h.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	httpClient := &http.Client{Timeout: 5 * time.Second}

	for {
		ready, err := h.probe(ctx, httpClient, url, method, matcher)
		if err == nil && ready {
			return nil
		}
		// transient errors (network, non-matching response) are not
		// logged: this strategy only surfaces errors that preclude retry,
		// so probe errors are discarded and the loop just tries again.

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h HTTP) probe(ctx context.Context, client *http.Client, url, method string, matcher HTTPMatcher) (bool, error) {
	var bodyReader io.Reader
	if h.Body != nil {
		bodyReader = bytes.NewReader(h.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return false, err
	}
	for k, values := range h.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return matcher(resp), nil
}

// resolveHostPort picks the IPv4 mapping when daemonHost looks like a
// domain or IPv4 literal, IPv6 otherwise, so the probe dials an address
// family the daemon host can actually route. daemonHost is the daemon's
// endpoint URL; a socket endpoint (or an empty one) has no host part and
// counts as local, so it gets the IPv4 mapping.
func resolveHostPort(state ContainerState, containerPort int, daemonHost string) (string, error) {
	key := strconv.Itoa(containerPort) + "/tcp"
	bindings, ok := state.Ports[key]
	if !ok || len(bindings) == 0 {
		return "", ErrNoExposedPort
	}

	preferIPv6 := false
	if endpoint, err := neturl.Parse(daemonHost); err == nil {
		preferIPv6 = looksLikeIPv6(endpoint.Hostname())
	}
	for _, b := range bindings {
		if looksLikeIPv6(b.HostIP) == preferIPv6 {
			return formatHostPort(b), nil
		}
	}
	return formatHostPort(bindings[0]), nil
}

func formatHostPort(b PortBinding) string {
	host := b.HostIP
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	if looksLikeIPv6(host) {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(b.HostPort)
}

func looksLikeIPv6(host string) bool {
	return bytes.ContainsRune([]byte(host), ':')
}
