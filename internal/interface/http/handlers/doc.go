// Package handlers contains the reusable pieces of the HTTP interface:
// identity resolution, the internal API key guard, health checks and
// request middleware.
//
// Protected learner routes are wrapped with an Authenticator:
//
//	auth := handlers.NewAuthenticator(handlers.NewTokenVerifier(secret, issuer), onFailure)
//	mux.Handle("GET /progress/streak", auth.Middleware(streakHandler))
//
// Handlers read the caller with IdentityFrom(r.Context()).
package handlers
