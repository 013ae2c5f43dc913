package orgcontext

import (
	"context"

	teamdomain "github.com/snowdenHM/bill/internal/team/domain"
)

type contextKey struct{}

// WithTeam stores the resolved tenant on the context.
func WithTeam(ctx context.Context, team teamdomain.Team) context.Context {
	return context.WithValue(ctx, contextKey{}, team)
}

// Team returns the tenant previously resolved by the team middleware.
func Team(ctx context.Context) (teamdomain.Team, bool) {
	team, ok := ctx.Value(contextKey{}).(teamdomain.Team)
	return team, ok
}
