package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/escalation"
	"github.com/partsbid/matching-engine/internal/offers"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the request progression scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Scheduler: advance waves, close early, expire offers, evaluate.
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Scheduler.SweepSpec, func() {
			if _, err := env.sweeper.Run(ctx); err != nil {
				zap.L().Error("sweep pass failed", zap.Error(err))
			}
		}); err != nil {
			return eris.Wrap(err, "serve: schedule sweep")
		}
		scheduler.Start()
		defer scheduler.Stop()

		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/requests/{id}", func(r chi.Router) {
			r.Get("/", env.handleRequestStatus)
			r.Post("/escalate", env.handleEscalate)
			r.Post("/offers", env.handleSubmitOffer)
			r.Post("/response", env.handleClientResponse)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("sweep_spec", cfg.Scheduler.SweepSpec),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

func (e *env) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	req, err := e.escStore.GetRequest(r.Context(), requestID)
	if err != nil {
		if eris.Is(err, escalation.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	submitted, err := e.escStore.CountSubmittedOffers(r.Context(), requestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":               req.ID,
		"state":            req.State,
		"tier":             req.TierLevel,
		"submitted_offers": submitted,
		"desired_offers":   req.DesiredOffers,
		"total_awarded":    req.TotalAwarded,
	})
}

func (e *env) handleEscalate(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	result, err := e.escalation.Escalate(r.Context(), requestID)
	if err != nil {
		if eris.Is(err, escalation.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		zap.L().Error("escalation failed", zap.String("request_id", requestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "escalation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    result.Success,
		"reason":     result.Reason,
		"candidates": result.Candidates,
		"eligible":   result.Eligible,
		"excluded":   len(result.Excluded),
		"degraded":   result.Degraded,
	})
}

func (e *env) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var sub offers.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sub.RequestID = chi.URLParam(r, "id")

	offer, err := e.offers.Submit(r.Context(), sub)
	if err != nil {
		switch {
		case eris.Is(err, offers.ErrRequestLocked):
			// Evaluation holds the lock; the advisor should retry shortly.
			w.Header().Set("Retry-After", "2")
			writeError(w, http.StatusConflict, "request is being evaluated, retry")
		case eris.Is(err, offers.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case eris.Is(err, offers.ErrRequestClosed):
			writeError(w, http.StatusConflict, "request is not accepting offers")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"offer_id":     offer.ID,
		"total_amount": offer.TotalAmount,
		"coverage_pct": offer.CoveragePct,
	})
}

func (e *env) handleClientResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Accepted *bool `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accepted == nil {
		writeError(w, http.StatusBadRequest, "accepted is required")
		return
	}

	requestID := chi.URLParam(r, "id")
	if err := e.offers.Respond(r.Context(), requestID, *body.Accepted); err != nil {
		switch {
		case eris.Is(err, offers.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case eris.Is(err, offers.ErrNotEvaluated):
			writeError(w, http.StatusConflict, "request has no evaluation to respond to")
		default:
			zap.L().Error("client response failed", zap.String("request_id", requestID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "response failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accepted": *body.Accepted})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
