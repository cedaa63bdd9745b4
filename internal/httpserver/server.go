// Package httpserver exposes the domain services as a JSON API. Handlers are
// thin: decode, authorize, call the service, map the domain error to a
// status code.
package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GreenLoopLabs/greenledger/internal/metrics"
	"github.com/GreenLoopLabs/greenledger/pkg/access"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

// actorHeader carries the authenticated actor id. Authentication itself is an
// upstream concern; this server only checks capabilities.
const actorHeader = "X-Actor-ID"

var (
	capabilityVerify = access.Capability{Module: "submission", Action: "verify"}
	capabilityAdjust = access.Capability{Module: "ledger", Action: "adjust"}
)

// SubmissionService is the submission pipeline surface the server consumes.
type SubmissionService interface {
	Create(ctx context.Context, accountID ledger.AccountID, boothID capacity.BoothID, wasteType submission.WasteType, quantityKg float64) (submission.Submission, error)
	Approve(ctx context.Context, submissionID submission.SubmissionID, verifierID string) (submission.ApprovalResult, error)
	Reject(ctx context.Context, submissionID submission.SubmissionID, verifierID string, reason string) error
	Get(ctx context.Context, submissionID submission.SubmissionID) (submission.Submission, error)
}

// RedemptionService is the redemption surface the server consumes.
type RedemptionService interface {
	Redeem(ctx context.Context, accountID ledger.AccountID, rewardID inventory.RewardID, quantity inventory.Quantity, idempotencyKey string) (redemption.Ticket, error)
}

// LedgerService is the account/ledger surface the server consumes.
type LedgerService interface {
	Adjust(ctx context.Context, accountID ledger.AccountID, delta ledger.Delta, reason string, actorID string, referenceID ledger.ReferenceID) (ledger.Entry, error)
	Account(ctx context.Context, accountID ledger.AccountID) (ledger.AccountView, error)
	ListEntries(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Entry, error)
}

// InventoryService is the stock surface the server consumes.
type InventoryService interface {
	Stock(ctx context.Context, rewardID inventory.RewardID) (inventory.Pool, error)
}

// CapacityService is the booth window surface the server consumes.
type CapacityService interface {
	Usage(ctx context.Context, boothID capacity.BoothID) (capacity.Usage, error)
}

// Server is the greenledger HTTP API server.
type Server struct {
	submissions SubmissionService
	redemptions RedemptionService
	credits     LedgerService
	stock       InventoryService
	booths      CapacityService
	directory   access.Directory
	logger      *zap.Logger
}

// NewServer wires a Server.
func NewServer(
	submissions SubmissionService,
	redemptions RedemptionService,
	credits LedgerService,
	stock InventoryService,
	booths CapacityService,
	directory access.Directory,
	logger *zap.Logger,
) *Server {
	return &Server{
		submissions: submissions,
		redemptions: redemptions,
		credits:     credits,
		stock:       stock,
		booths:      booths,
		directory:   directory,
		logger:      logger.Named("http"),
	}
}

// Handler returns the chi router with all routes mounted.
func (server *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(metricsMiddleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(router chi.Router) {
		router.Post("/submissions", server.handleCreateSubmission)
		router.Get("/submissions/{submissionID}", server.handleGetSubmission)
		router.Post("/submissions/{submissionID}/approve", server.handleApproveSubmission)
		router.Post("/submissions/{submissionID}/reject", server.handleRejectSubmission)

		router.Post("/redemptions", server.handleRedeem)

		router.Get("/accounts/{accountID}", server.handleGetAccount)
		router.Get("/accounts/{accountID}/entries", server.handleListEntries)
		router.Post("/accounts/{accountID}/adjustments", server.handleAdjustBalance)

		router.Get("/rewards/{rewardID}/stock", server.handleGetStock)
		router.Get("/booths/{boothID}/capacity", server.handleGetCapacity)
	})

	return router
}

// requireCapability resolves the actor header and checks one capability.
func (server *Server) requireCapability(r *http.Request, capability access.Capability) (string, error) {
	actorID := r.Header.Get(actorHeader)
	if actorID == "" {
		return "", access.ErrUnknownActor
	}
	if err := access.Require(r.Context(), server.directory, actorID, capability); err != nil {
		return "", err
	}
	return actorID, nil
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(wrapped, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(wrapped.Status()), time.Since(started).Seconds())
	})
}
