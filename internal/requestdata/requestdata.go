package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

// RequestData is the per-request identity resolved by the auth middleware.
type RequestData struct {
	TokenString string
	UserID      uuid.UUID
	Role        string
	Roles       []string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}
