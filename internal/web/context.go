package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetq/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so the
// service can attribute mutations in its logs. RemoteAddr has already been
// resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}
