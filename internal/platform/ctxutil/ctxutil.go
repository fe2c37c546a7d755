package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestDataKey contextKey = "request_data"
)

// RequestData identifies the acting principal for a request. Authentication is
// out of scope here; the values come from trusted gateway headers.
type RequestData struct {
	RequestID      string
	UserID         uuid.UUID
	OrganizationID uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(requestDataKey).(*RequestData)
	return rd
}
