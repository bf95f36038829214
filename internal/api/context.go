package api

import "context"

type contextKey string

const userEmailKey contextKey = "userEmail"

// UserEmailFromContext extracts the caller's email from the context.
// Returns empty string if not present.
func UserEmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userEmailKey).(string); ok {
		return v
	}

	return ""
}

func withUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}
