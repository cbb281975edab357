package dispatcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestExecutor(t *testing.T, handler fasthttp.RequestHandler) *TimeoutExecutor {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})

	pool := NewHTTPPool(2, "http://discord.test/api/v10/")
	for _, c := range pool.clients {
		c.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	}
	return NewTimeoutExecutor(pool, NewRateLimitMonitor(), "tok")
}

func TestTimeoutExecutorSendsPatch(t *testing.T) {
	var (
		method, path, auth, reason string
		body                       []byte
	)
	te := newTestExecutor(t, func(ctx *fasthttp.RequestCtx) {
		method = string(ctx.Method())
		path = string(ctx.Path())
		auth = string(ctx.Request.Header.Peek("Authorization"))
		reason = string(ctx.Request.Header.Peek("X-Audit-Log-Reason"))
		body = append([]byte(nil), ctx.PostBody()...)
		ctx.SetStatusCode(http.StatusOK)
	})

	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := te.Timeout(context.Background(), "g1", "u1", until, "spam")
	require.NoError(t, err)

	assert.Equal(t, fasthttp.MethodPatch, method)
	assert.Equal(t, "/api/v10/guilds/g1/members/u1", path)
	assert.Equal(t, "Bot tok", auth)
	assert.Equal(t, "spam", reason)
	assert.JSONEq(t, `{"communication_disabled_until":"2026-03-01T12:00:00Z"}`, string(body))
}

func TestTimeoutExecutorMapsStatus(t *testing.T) {
	status := http.StatusForbidden
	te := newTestExecutor(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(status)
		ctx.SetBodyString(`{"message":"Missing Permissions","code":50013}`)
	})

	err := te.Timeout(context.Background(), "g1", "u1", time.Now().Add(time.Minute), "")
	assert.True(t, IsPermissionDenied(err))

	status = http.StatusNotFound
	err = te.Timeout(context.Background(), "g1", "u1", time.Now().Add(time.Minute), "")
	assert.ErrorIs(t, err, ErrUnknownResource)

	status = http.StatusInternalServerError
	err = te.Timeout(context.Background(), "g1", "u1", time.Now().Add(time.Minute), "")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}

func TestTimeoutExecutorHonoursBucket(t *testing.T) {
	calls := 0
	te := newTestExecutor(t, func(ctx *fasthttp.RequestCtx) {
		calls++
		ctx.Response.Header.Set("X-RateLimit-Limit", "5")
		ctx.Response.Header.Set("X-RateLimit-Remaining", "0")
		ctx.Response.Header.Set("X-RateLimit-Reset-After", "30")
		ctx.SetStatusCode(http.StatusNoContent)
	})

	require.NoError(t, te.Timeout(context.Background(), "g1", "u1", time.Now().Add(time.Minute), ""))
	err := te.Timeout(context.Background(), "g1", "u2", time.Now().Add(time.Minute), "")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls)

	// Other guilds have their own bucket.
	require.NoError(t, te.Timeout(context.Background(), "g2", "u1", time.Now().Add(time.Minute), ""))
}

func TestRateLimitMonitorRetryAfter(t *testing.T) {
	now := time.Unix(1000, 0)
	rlm := NewRateLimitMonitor()
	rlm.now = func() time.Time { return now }

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)
	resp.SetStatusCode(fasthttp.StatusTooManyRequests)
	resp.Header.Set("Retry-After", "2.5")

	rlm.UpdateFromFastHTTPResponse(resp, "member_edit", "g1")
	assert.False(t, rlm.CanExecute("member_edit", "g1"))
	assert.Equal(t, now.Add(2500*time.Millisecond), rlm.GetBucket("member_edit", "g1").ResetAt)

	now = now.Add(3 * time.Second)
	assert.True(t, rlm.CanExecute("member_edit", "g1"))
	assert.True(t, rlm.CanExecute("member_edit", "other"))
}

func TestHTTPPoolRoundRobin(t *testing.T) {
	pool := NewHTTPPool(3, "https://discord.com/api/v10/")
	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, "https://discord.com/api/v10/gateway", pool.URL("/gateway"))

	seen := map[*fasthttp.Client]int{}
	for range 9 {
		seen[pool.GetClient()]++
	}
	assert.Len(t, seen, 3)
	for _, n := range seen {
		assert.Equal(t, 3, n)
	}

	assert.Equal(t, 1, NewHTTPPool(0, "").Size())
}

func TestClassify(t *testing.T) {
	restErr := func(status, code int) error {
		return &discordgo.RESTError{
			Response: &http.Response{StatusCode: status},
			Message:  &discordgo.APIErrorMessage{Code: code},
		}
	}

	assert.True(t, IsPermissionDenied(classify(restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions))))
	assert.True(t, IsPermissionDenied(classify(restErr(http.StatusForbidden, 0))))
	assert.ErrorIs(t, classify(restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)), ErrUnknownResource)
	assert.ErrorIs(t, classify(restErr(http.StatusTooManyRequests, 0)), ErrRateLimited)

	// The original error stays reachable.
	err := classify(restErr(http.StatusForbidden, discordgo.ErrCodeMissingPermissions))
	var rest *discordgo.RESTError
	assert.True(t, errors.As(err, &rest))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}
