package glpi

import "context"

type correlationKey struct{}

// WithCorrelation attaches a correlation id to the context. The client
// forwards it to GLPI as X-Correlation-ID and tags log records with it.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationFrom extracts the correlation id, or "" when absent.
func CorrelationFrom(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
