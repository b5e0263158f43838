package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// Middlewares bundles the authentication and rate-limit layers that routers
// apply per endpoint.
type Middlewares struct {
	// Authenticate verifies the bearer token and loads the acting user.
	Authenticate Middleware
	// AuthRate limits authentication endpoints by client IP.
	AuthRate Middleware
	// BurstRate limits borrow and return actions by user.
	BurstRate Middleware
	// SustainedRate limits general reads by user.
	SustainedRate Middleware
}

// NewMiddlewares builds authentication middleware from secret. Unset rate
// limiters pass requests through.
func NewMiddlewares(userService *services.UserService, jwtSecret string, authRate, burstRate, sustainedRate Middleware) Middlewares {
	authenticate := func(next http.Handler) http.Handler {
		return RequireAuth(jwtSecret)(LoadActor(userService)(next))
	}
	return Middlewares{
		Authenticate:  authenticate,
		AuthRate:      orPassthrough(authRate),
		BurstRate:     orPassthrough(burstRate),
		SustainedRate: orPassthrough(sustainedRate),
	}
}

func orPassthrough(mw Middleware) Middleware {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

// LoadActor resolves the token subject into the acting user. Unknown or
// inactive users are rejected.
func LoadActor(userService *services.UserService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				writeServiceError(w, r, err, "failed to load user")
				return
			}
			if !user.IsActive {
				writeError(w, http.StatusUnauthorized, "account is inactive")
				return
			}

			ctx := context.WithValue(r.Context(), contextActorKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose acting user is not an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !actor.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireActor fetches the acting user or writes 401.
func requireActor(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return actor, ok
}
