package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/menusync/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for batch logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // already rewritten by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
