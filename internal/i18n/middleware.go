package i18n

import "net/http"

// Middleware picks the response language from the Accept-Language header,
// falling back to lang, and stores a matching localizer in the request context.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := Match(r.Header.Get("Accept-Language"), lang)
			w.Header().Set("Content-Language", tag.String())
			ctx := WithLocalizer(r.Context(), NewLocalizer(tag.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
