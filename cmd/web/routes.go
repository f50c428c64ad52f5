package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth/gothic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mhenrik/skillrank/internal/config"
	"github.com/mhenrik/skillrank/internal/db"
	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/mhenrik/skillrank/internal/httputil"
	"github.com/mhenrik/skillrank/internal/middleware"
	"github.com/mhenrik/skillrank/internal/rating"
	"github.com/mhenrik/skillrank/internal/service"
	"github.com/mhenrik/skillrank/internal/store"
	"github.com/mhenrik/skillrank/internal/trust"
)

func newRouter(cfg config.Config, sessionManager *scs.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	engine := trust.NewEngine(trust.Policy{
		BaseScore:       cfg.VerifyBaseScore,
		RecencyCredit:   cfg.VerifyRecencyCred,
		DeviceCredit:    cfg.VerifyDeviceCred,
		VerifyThreshold: cfg.VerifyThreshold,
		TrustWindow:     cfg.TrustWindow,
	})
	reviewPolicy := service.ReviewPolicy{
		Quorum:        cfg.ReviewQuorum,
		Supermajority: cfg.Supermajority,
		PageSize:      cfg.ReviewPageSize,
	}
	decay := rating.DecayPolicy{
		Grace:       cfg.DecayGrace,
		DailyFactor: cfg.DailyDecay,
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		dbConn := db.GetDB()
		profileService := service.NewProfileService(dbConn, store.NewPlayerStore(dbConn))

		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				httputil.BadRequest(w, "Invalid limit", err)
				return
			}
			limit = n
		}

		entries, err := profileService.Leaderboard(r.Context(), r.URL.Query().Get("country"), limit)
		if err != nil {
			httputil.InternalServerError(w, "Failed to read leaderboard", err)
			return
		}
		httputil.JSON(w, http.StatusOK, entries)
	})

	r.Get("/api/players/{id}", func(w http.ResponseWriter, r *http.Request) {
		dbConn := db.GetDB()
		profileService := service.NewProfileService(dbConn, store.NewPlayerStore(dbConn))

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.BadRequest(w, "Invalid player ID", err)
			return
		}

		p, err := profileService.GetPlayer(r.Context(), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httputil.NotFound(w, "Player not found", err)
				return
			}
			httputil.InternalServerError(w, "Failed to get player", err)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]any{
			"id":              p.ID,
			"username":        p.Username,
			"country":         p.Country,
			"composite_score": p.CompositeScore,
			"tier":            p.Tier,
			"effective_score": p.EffectiveScore,
			"ranked_at":       p.RankedAt,
		})
	})

	// Tier range check for tournament and matchmaking collaborators.
	r.Get("/api/eligibility", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		allowed := rating.IsAllowed(
			rating.Tier(q.Get("tier")),
			rating.Tier(q.Get("min")),
			rating.Tier(q.Get("max")),
		)
		httputil.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(sessionManager, store.NewPlayerStore(db.GetDB())))

		r.Post("/api/evidence", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			submissionService := service.NewSubmissionService(dbConn,
				store.NewEvidenceStore(dbConn), store.NewTechniqueStore(dbConn), engine)

			var input service.SubmissionInput
			if err := httputil.DecodeJSON(r, &input); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			ownerID, ok := middleware.GetPlayerIDFromContext(r.Context())
			if !ok {
				httputil.Unauthorized(w, "Login required")
				return
			}

			result, err := submissionService.Submit(r.Context(), ownerID, input)
			if err != nil {
				if errors.Is(err, service.ErrNoScores) {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				httputil.InternalServerError(w, "Failed to submit evidence", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, result)
		})

		r.Get("/api/reviews/queue", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			reviewService := newReviewService(dbConn, reviewPolicy)

			items, err := reviewService.Queue(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to load review queue", err)
				return
			}
			httputil.JSON(w, http.StatusOK, items)
		})

		r.Post("/api/evidence/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			reviewService := newReviewService(dbConn, reviewPolicy)

			evidenceID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid evidence ID", err)
				return
			}

			var body struct {
				Verdict evidence.Verdict `json:"verdict"`
			}
			if err := httputil.DecodeJSON(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			result, err := reviewService.SubmitVerdict(r.Context(), evidenceID, body.Verdict)
			if err != nil {
				writeReviewError(w, err)
				return
			}
			httputil.JSON(w, http.StatusOK, result)
		})

		r.Post("/api/evidence/{id}/adjudicate", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			reviewService := newReviewService(dbConn, reviewPolicy)

			evidenceID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				httputil.BadRequest(w, "Invalid evidence ID", err)
				return
			}

			var body struct {
				Approve bool `json:"approve"`
			}
			if err := httputil.DecodeJSON(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			result, err := reviewService.Adjudicate(r.Context(), evidenceID, body.Approve)
			if err != nil {
				writeReviewError(w, err)
				return
			}
			httputil.JSON(w, http.StatusOK, result)
		})

		r.Patch("/api/profile", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			profileService := service.NewProfileService(dbConn, store.NewPlayerStore(dbConn))

			var body struct {
				Username string `json:"username"`
				Country  string `json:"country"`
			}
			if err := httputil.DecodeJSON(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			p, err := profileService.UpdateProfile(r.Context(), body.Username, body.Country)
			if err != nil {
				httputil.InternalServerError(w, "Failed to update profile", err)
				return
			}
			httputil.JSON(w, http.StatusOK, map[string]any{
				"id":       p.ID,
				"username": p.Username,
				"country":  p.Country,
			})
		})
	})

	// Scheduler trigger endpoints. A held lock surfaces as a skipped run,
	// not a failure.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCronSecret(cfg.CronSecret))

		r.Post("/internal/jobs/ranking", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			rankingService := service.NewRankingService(dbConn,
				store.NewPlayerStore(dbConn), store.NewTechniqueStore(dbConn),
				store.NewJobLockStore(dbConn), cfg.LockTTL, decay)

			report, err := rankingService.RunRankingJob(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Ranking job failed", err)
				return
			}
			httputil.JSON(w, http.StatusOK, report)
		})

		r.Post("/internal/jobs/maintenance", func(w http.ResponseWriter, r *http.Request) {
			dbConn := db.GetDB()
			maintenanceService := service.NewMaintenanceService(
				store.NewEvidenceStore(dbConn), store.NewJobLockStore(dbConn),
				cfg.LockTTL, cfg.StaleReviewAfter)

			report, err := maintenanceService.RunMaintenanceJob(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Maintenance job failed", err)
				return
			}
			httputil.JSON(w, http.StatusOK, report)
		})
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		dbConn := db.GetDB()
		profileService := service.NewProfileService(dbConn, store.NewPlayerStore(dbConn))
		p, err := profileService.FindOrCreatePlayerByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create player", err)
			return
		}

		sessionManager.Put(r.Context(), "playerID", p.ID.String())

		httputil.JSON(w, http.StatusOK, map[string]any{"id": p.ID})
	})

	r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		dbConn := db.GetDB()
		profileService := service.NewProfileService(dbConn, store.NewPlayerStore(dbConn))

		p, err := profileService.EnsureGuestPlayer(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to login as guest", err)
			return
		}

		sessionManager.Put(r.Context(), "playerID", p.ID.String())
		httputil.JSON(w, http.StatusOK, map[string]any{"id": p.ID})
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		sessionManager.Destroy(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func newReviewService(dbConn *sqlx.DB, policy service.ReviewPolicy) *service.ReviewService {
	return service.NewReviewService(dbConn,
		store.NewEvidenceStore(dbConn), store.NewTechniqueStore(dbConn),
		store.NewPlayerStore(dbConn), policy)
}

// writeReviewError maps the review error taxonomy onto HTTP statuses.
// Integrity violations are client-visible rejections, never silent.
func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		httputil.NotFound(w, "Evidence not found", err)
	case errors.Is(err, service.ErrSelfReview), errors.Is(err, service.ErrNotModerator):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrDuplicateReview),
		errors.Is(err, service.ErrAlreadyFinalized),
		errors.Is(err, service.ErrNotFlagged):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidVerdict):
		httputil.BadRequest(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, "Failed to process review", err)
	}
}
