package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/fixhub/fixhub-backend/internal/api/httpx"
	"github.com/fixhub/fixhub-backend/internal/api/validate"
	"github.com/fixhub/fixhub-backend/internal/config"
	"github.com/fixhub/fixhub-backend/internal/metrics"
	"github.com/fixhub/fixhub-backend/internal/middleware"
	"github.com/fixhub/fixhub-backend/internal/models"
	"github.com/fixhub/fixhub-backend/internal/services"
)

type RouterDeps struct {
	Cfg           config.Config
	Auth          *middleware.AuthMiddleware
	UserSvc       *services.UserService
	DirectorySvc  *services.DirectoryService
	LifecycleSvc  *services.LifecycleService
	LedgerSvc     *services.LedgerService
	ReconcilerSvc *services.ReconcilerService
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// This mapping is the only place that knowledge lives.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", err.Error(), nil)
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, services.ErrUnauthorized):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyCompleted):
		httpx.WriteError(w, http.StatusConflict, "already_completed", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, services.ErrInsufficientFunds):
		httpx.WriteError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error(), nil)
	case errors.Is(err, services.ErrGateway):
		httpx.WriteError(w, http.StatusBadGateway, "gateway_error", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func principal(r *http.Request) services.Principal {
	id, _ := middleware.UserID(r.Context())
	role, _ := middleware.Role(r.Context())
	return services.Principal{ID: id, Role: role}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Username string       `json:"username"`
				Email    string       `json:"email"`
				Password string       `json:"password"`
				Phone    string       `json:"phone"`
				Role     string       `json:"role"`
				Location models.Point `json:"location"`
				Skills   []string     `json:"skills"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
				return
			}
			var ve validate.Errs
			for _, e := range []*validate.ErrField{
				validate.Required("username", req.Username),
				validate.Required("email", req.Email),
				validate.Required("password", req.Password),
				validate.Required("role", req.Role),
			} {
				if e != nil {
					ve = append(ve, *e)
				}
			}
			if len(ve) > 0 {
				httpx.WriteError(w, http.StatusBadRequest, "validation_failed", ve.Error(), ve)
				return
			}
			u, err := d.UserSvc.Register(r.Context(), services.RegisterInput{
				Username: req.Username, Email: req.Email, Password: req.Password,
				Phone: req.Phone, Role: req.Role, Location: req.Location, Skills: req.Skills,
			})
			if err != nil {
				writeServiceError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, u)
		})

		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
				return
			}
			pair, err := d.UserSvc.Login(r.Context(), req.Email, req.Password)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, pair)
		})

		r.Post("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
				return
			}
			pair, err := d.UserSvc.Refresh(r.Context(), req.RefreshToken)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, pair)
		})

		// ---------- gateway webhook (unauthenticated; body is untrusted) ----------
		r.Post("/transactions/webhook", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				TxRef  string `json:"tx_ref"`
				Status string `json:"status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxRef == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "tx_ref required", nil)
				return
			}
			d.ReconcilerSvc.SubmitWebhook(req.TxRef)
			httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		})

		// ---------- authenticated ----------
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Auth)

			r.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
				u, err := d.UserSvc.Get(r.Context(), principal(r).ID)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, u)
			})

			r.Get("/providers/search", func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				lat, _ := strconv.ParseFloat(q.Get("lat"), 64)
				lng, _ := strconv.ParseFloat(q.Get("lng"), 64)
				maxDist, _ := strconv.ParseFloat(q.Get("max_distance"), 64)
				out, err := d.DirectorySvc.Search(r.Context(), services.SearchQuery{
					Keywords:          strings.Split(q.Get("keywords"), ","),
					Origin:            models.Point{Lat: lat, Lng: lng},
					MaxDistanceMeters: maxDist,
					SortBy:            q.Get("sort_by"),
				})
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, out)
			})

			r.With(middleware.RequireRole(models.RoleClient)).Post("/requests", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					ProviderID   string       `json:"provider_id"`
					Category     string       `json:"category"`
					Description  string       `json:"description"`
					Location     models.Point `json:"location"`
					Budget       *int64       `json:"budget"`
					IsFixedPrice bool         `json:"is_fixed_price"`
					Media        []string     `json:"media"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				sr, err := d.LifecycleSvc.Create(r.Context(), principal(r), services.CreateRequestInput{
					ProviderID: req.ProviderID, Category: req.Category, Description: req.Description,
					Location: req.Location, Budget: req.Budget, IsFixedPrice: req.IsFixedPrice, Media: req.Media,
				})
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, sr)
			})

			r.Get("/requests", func(w http.ResponseWriter, r *http.Request) {
				out, err := d.LifecycleSvc.ListForCustomer(r.Context(), principal(r))
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, out)
			})

			r.With(middleware.RequireRole(models.RoleProvider)).Get("/requests/inbox", func(w http.ResponseWriter, r *http.Request) {
				out, err := d.LifecycleSvc.ListForProvider(r.Context(), principal(r))
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, out)
			})

			r.Post("/requests/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
				sr, err := d.LifecycleSvc.Accept(r.Context(), principal(r), chi.URLParam(r, "id"))
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, sr)
			})

			r.Post("/requests/{id}/decline", func(w http.ResponseWriter, r *http.Request) {
				sr, err := d.LifecycleSvc.Decline(r.Context(), principal(r), chi.URLParam(r, "id"))
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, sr)
			})

			r.Post("/requests/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Rating  int    `json:"rating"`
					Comment string `json:"comment"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if e := validate.IntRange("rating", int64(req.Rating), 1, 5); e != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation_failed", e.Msg, validate.Errs{*e})
					return
				}
				rv, err := d.LifecycleSvc.Complete(r.Context(), principal(r), chi.URLParam(r, "id"), req.Rating, req.Comment)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, rv)
			})

			r.Delete("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
				if err := d.LifecycleSvc.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
			})

			r.Post("/requests/{id}/unlock-contact", func(w http.ResponseWriter, r *http.Request) {
				contact, err := d.LifecycleSvc.UnlockContact(r.Context(), principal(r), chi.URLParam(r, "id"))
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, contact)
			})

			r.Get("/wallet/balance", func(w http.ResponseWriter, r *http.Request) {
				coins, err := d.LedgerSvc.Balance(r.Context(), principal(r).ID)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]int64{"coins": coins})
			})

			r.With(middleware.RequireRole(models.RoleClient)).Post("/transactions/initiate", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Amount int64 `json:"amount"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				if e := validate.MinInt("amount", req.Amount, 1); e != nil {
					httpx.WriteError(w, http.StatusBadRequest, "validation_failed", e.Msg, validate.Errs{*e})
					return
				}
				out, err := d.ReconcilerSvc.Initiate(r.Context(), principal(r), req.Amount)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, out)
			})

			r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
				limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
				offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
				out, err := d.ReconcilerSvc.ListByPayer(r.Context(), principal(r), limit, offset)
				if err != nil {
					writeServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, out)
			})
		})
	})

	return r
}
