// Package middleware holds reusable net/http middleware for the graphview API.
//
// All middleware follows the pattern func(http.Handler) http.Handler so it
// chains as handler = RequestID()(BodySizeLimit(n)(mux)).
package middleware
