package services

import "context"

type contextKey string

const merchantIDKey contextKey = "merchant_id"

// WithMerchantContext attaches the authenticated merchant to the request
// context.
func WithMerchantContext(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, merchantIDKey, merchantID)
}

// MerchantIDFromContext returns the authenticated merchant, if any.
func MerchantIDFromContext(ctx context.Context) (string, bool) {
	merchantID, ok := ctx.Value(merchantIDKey).(string)
	return merchantID, ok && merchantID != ""
}
