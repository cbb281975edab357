package dispatcher

import (
	"crypto/tls"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

// HTTPPool round-robins requests over a fixed set of keep-alive clients.
type HTTPPool struct {
	clients []*fasthttp.Client
	index   atomic.Uint32
	baseURL string
}

func NewHTTPPool(size int, baseURL string) *HTTPPool {
	if size <= 0 {
		size = 1
	}
	clients := make([]*fasthttp.Client, size)

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
	}

	for i := 0; i < size; i++ {
		clients[i] = &fasthttp.Client{
			MaxConnsPerHost:     256,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         5 * time.Second,
			WriteTimeout:        5 * time.Second,
			MaxConnWaitTimeout:  time.Second,
			MaxResponseBodySize: 4 * 1024 * 1024,

			// Only idempotent calls are retried by fasthttp; PATCH is not.
			MaxIdemponentCallAttempts: 1,

			TLSConfig:                tlsConfig,
			NoDefaultUserAgentHeader: true,
		}
	}

	return &HTTPPool{
		clients: clients,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.index.Add(1)
	return hp.clients[int(i)%len(hp.clients)]
}

func (hp *HTTPPool) URL(path string) string {
	return hp.baseURL + path
}

func (hp *HTTPPool) Size() int {
	return len(hp.clients)
}

// Warmup opens a connection per client so the first enforcement call does
// not pay for the TLS handshake.
func (hp *HTTPPool) Warmup() int {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	ok := 0
	for _, c := range hp.clients {
		req.SetRequestURI(hp.URL("/gateway"))
		req.Header.SetMethod(fasthttp.MethodGet)
		if err := c.DoTimeout(req, resp, 2*time.Second); err == nil && resp.StatusCode() == fasthttp.StatusOK {
			ok++
		}
	}
	logging.Debug("HTTP pool warmed %d/%d clients", ok, len(hp.clients))
	return ok
}
