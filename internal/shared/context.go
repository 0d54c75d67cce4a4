package shared

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestMeta describes the client behind a request.
type RequestMeta struct {
	RequestID string
	IP        string
	UserAgent string
}

type metaContextKey struct{}

// ContextWithMeta stores request metadata in context.
func ContextWithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext extracts request metadata from context.
func MetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(metaContextKey{}).(RequestMeta)
	return meta
}

// MetaFromRequest reads metadata from r. RemoteAddr is expected to have been
// rewritten by chi's RealIP middleware.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: middleware.GetReqID(r.Context()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
