// Package josekeysfasthttp lets josekeys fetch remote key sets over a
// fasthttp.Client instead of net/http.
//
// Concurrency: Client is safe for concurrent use when the wrapped
// fasthttp.Client is (it is by default).
package josekeysfasthttp

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultMaxResponseBodySize caps response bodies read by the client New
// creates when given nil.
const DefaultMaxResponseBodySize = 1 << 20

// Client implements josekeys.HTTPClient on top of fasthttp.
type Client struct {
	c       *fasthttp.Client
	timeout time.Duration
}

// New wraps c. A nil c gets a fasthttp.Client limited to
// DefaultMaxResponseBodySize; a non-nil c keeps its own MaxResponseBodySize.
// timeout bounds each request; a context deadline on the request shortens it
// further.
func New(c *fasthttp.Client, timeout time.Duration) *Client {
	if c == nil {
		c = &fasthttp.Client{MaxResponseBodySize: DefaultMaxResponseBodySize}
	}
	return &Client{c: c, timeout: timeout}
}

// Do performs req and returns a fully buffered *http.Response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	freq := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(freq)
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL.String())
	freq.Header.SetMethod(req.Method)
	for k, vs := range req.Header {
		for _, v := range vs {
			freq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		freq.SetBody(body)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); timeout <= 0 || d < timeout {
			timeout = d
		}
	}

	var err error
	if timeout > 0 {
		err = c.c.DoTimeout(freq, fresp, timeout)
	} else {
		err = c.c.Do(freq, fresp)
	}
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	fresp.Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})
	body := bytes.Clone(fresp.Body())

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", fresp.StatusCode(), http.StatusText(fresp.StatusCode())),
		StatusCode:    fresp.StatusCode(),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
