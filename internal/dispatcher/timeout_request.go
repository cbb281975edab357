package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

// TimeoutExecutor applies member timeouts over the pooled fasthttp clients.
// Timeouts are the first enforcement step and sit on the hottest path, so
// they skip discordgo's shared request queue.
type TimeoutExecutor struct {
	httpPool    *HTTPPool
	rateLimiter *RateLimitMonitor
	token       string
}

func NewTimeoutExecutor(httpPool *HTTPPool, rateLimiter *RateLimitMonitor, token string) *TimeoutExecutor {
	return &TimeoutExecutor{
		httpPool:    httpPool,
		rateLimiter: rateLimiter,
		token:       token,
	}
}

// Timeout sets communication_disabled_until for the member. A zero until
// clears an existing timeout.
func (te *TimeoutExecutor) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	if !te.rateLimiter.CanExecute("member_edit", guildID) {
		return ErrRateLimited
	}

	payload := map[string]interface{}{"communication_disabled_until": nil}
	if !until.IsZero() {
		payload["communication_disabled_until"] = until.UTC().Format(time.RFC3339)
	}
	body, _ := json.Marshal(payload)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(te.httpPool.URL(fmt.Sprintf("/guilds/%s/members/%s", guildID, userID)))
	req.Header.SetMethod(fasthttp.MethodPatch)
	req.Header.Set("Authorization", "Bot "+te.token)
	req.Header.SetContentType("application/json")
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}
	req.SetBody(body)

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	start := time.Now()
	if err := te.httpPool.GetClient().DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("timeout request: %w", err)
	}
	te.rateLimiter.UpdateFromFastHTTPResponse(resp, "member_edit", guildID)

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		logging.Debug("Timeout applied to %s in guild %s in %s", userID, guildID, time.Since(start))
		return nil
	}
	return statusError(status, resp.Body())
}
