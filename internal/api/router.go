package api

import (
	"log"
	"net/http"

	"github.com/example/cart-recovery/internal/api/middleware"
	"github.com/example/cart-recovery/internal/auth"
)

// RouterConfig holds the handler sets wired into the router.
type RouterConfig struct {
	Handlers          *Handlers
	RecoveryHandlers  *RecoveryHandlers
	AnalyticsHandlers *AnalyticsHandlers
	AuthHandlers      *AuthHandlers
	JWTService        *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	optionalAuth := middleware.OptionalAuthMiddleware(cfg.JWTService)
	requireAdmin := chain(
		middleware.AuthMiddleware(cfg.JWTService),
		middleware.RequireRole("admin"),
	)

	// Cart tracking. Callers may be anonymous; a valid token only
	// enriches the tracked session with the caller's email.
	tracking := map[string]http.HandlerFunc{
		"/cart-tracking/view":          cfg.Handlers.TrackView,
		"/cart-tracking/add":           cfg.Handlers.TrackAdd,
		"/cart-tracking/remove":        cfg.Handlers.TrackRemove,
		"/cart-tracking/abandon":       cfg.Handlers.TrackAbandon,
		"/cart-tracking/complete":      cfg.Handlers.TrackComplete,
		"/cart-tracking/merge-session": cfg.Handlers.MergeSession,
	}
	for path, fn := range tracking {
		mux.Handle(path, optionalAuth(postOnly(fn)))
	}

	// Recovery
	mux.HandleFunc("/recovery", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.RecoveryHandlers.Complete(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/recovery/cart-data", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.RecoveryHandlers.CartData(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Engagement webhook called by the email provider.
	mux.Handle("/recovery/email-events", postOnly(cfg.RecoveryHandlers.EmailEvent))

	mux.Handle("/recovery/send-email", requireAdmin(postOnly(cfg.RecoveryHandlers.SendEmail)))

	mux.Handle("/recovery/campaigns", requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPost:
			cfg.RecoveryHandlers.Campaigns(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/recovery/campaigns/", requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPut, http.MethodDelete:
			cfg.RecoveryHandlers.Campaign(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Analytics
	mux.Handle("/analytics/abandoned-carts", requireAdmin(getOnly(cfg.AnalyticsHandlers.AbandonedCarts)))
	mux.Handle("/analytics/recovered-carts", requireAdmin(getOnly(cfg.AnalyticsHandlers.RecoveredCarts)))

	// Admin
	mux.Handle("/admin/tracking-toggle", requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodPut:
			cfg.AnalyticsHandlers.Toggle(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/admin/sweep", requireAdmin(postOnly(cfg.Handlers.Sweep)))

	// Auth
	mux.Handle("/auth/login", postOnly(cfg.AuthHandlers.Login))
	mux.Handle("/auth/refresh", postOnly(cfg.AuthHandlers.Refresh))
	mux.Handle("/auth/logout", postOnly(cfg.AuthHandlers.Logout))
	mux.Handle("/auth/me", middleware.AuthMiddleware(cfg.JWTService)(getOnly(cfg.AuthHandlers.Me)))

	return withLogging(mux)
}

func chain(outer, inner func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return outer(inner(next))
	}
}

func postOnly(fn http.HandlerFunc) http.Handler {
	return methodOnly(http.MethodPost, fn)
}

func getOnly(fn http.HandlerFunc) http.Handler {
	return methodOnly(http.MethodGet, fn)
}

func methodOnly(method string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
