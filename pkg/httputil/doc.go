// Package httputil provides the JSON response helpers, query parameter parsing
// and middleware shared by the blastradius HTTP API.
//
// # Responses
//
//	httputil.WriteSuccess(w, result)
//	httputil.WriteBadRequest(w, "depth must not be negative")
//	httputil.WriteError(w, http.StatusBadGateway, err)
//
// # Query Parameters
//
//	depth, err := httputil.ParseQueryInt(r, "depth", 0)
//	reports, err := httputil.ParseQueryBool(r, "reports", false)
//
// # Middleware
//
//	router.Use(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil
