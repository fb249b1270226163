package middleware

import "net/http"

// HeaderXAPIVersion is the header clients send to pin the API contract.
const HeaderXAPIVersion = "X-API-Version"

// SupportedAPIVersion is the only version this server speaks.
const SupportedAPIVersion = "v1"

// Version returns a middleware that rejects requests carrying an
// unsupported X-API-Version header. A missing header is accepted and
// treated as the current version.
func Version() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := r.Header.Get(HeaderXAPIVersion); v != "" && v != SupportedAPIVersion {
				writeError(w, http.StatusBadRequest,
					"unsupported API version: "+v, "INVALID_API_VERSION")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
