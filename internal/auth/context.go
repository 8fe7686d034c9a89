// Package auth carries the authenticated caller through a request context.
package auth

import "context"

type sponsorKey struct{}
type adminKey struct{}

// SponsorContext identifies a sponsor signed in to the portal.
type SponsorContext struct {
	Email     string
	SessionID int64
}

func WithSponsor(ctx context.Context, sc SponsorContext) context.Context {
	return context.WithValue(ctx, sponsorKey{}, sc)
}

func SponsorFromContext(ctx context.Context) (SponsorContext, bool) {
	sc, ok := ctx.Value(sponsorKey{}).(SponsorContext)
	return sc, ok
}

// SponsorEmail returns the signed-in sponsor's email, or "" if none.
func SponsorEmail(ctx context.Context) string {
	sc, ok := SponsorFromContext(ctx)
	if !ok {
		return ""
	}
	return sc.Email
}

// WithAdmin marks the request as made by the named administrator.
func WithAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, adminKey{}, username)
}

// Admin returns the administrator's username, or "" if the caller is not one.
func Admin(ctx context.Context) string {
	name, _ := ctx.Value(adminKey{}).(string)
	return name
}
