package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GreenLoopLabs/greenledger/internal/metrics"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

const (
	defaultEntriesLimit = 50
	maxEntriesLimit     = 500
)

type createSubmissionRequest struct {
	AccountID  string  `json:"account_id"`
	BoothID    string  `json:"booth_id"`
	WasteType  string  `json:"waste_type"`
	QuantityKg float64 `json:"quantity_kg"`
}

type submissionResponse struct {
	SubmissionID  string  `json:"submission_id"`
	AccountID     string  `json:"account_id"`
	BoothID       string  `json:"booth_id"`
	WasteType     string  `json:"waste_type"`
	QuantityGrams int64   `json:"quantity_grams"`
	PointsEarned  int64   `json:"points_earned"`
	Status        string  `json:"status"`
	VerifiedBy    string  `json:"verified_by,omitempty"`
	RejectReason  string  `json:"reject_reason,omitempty"`
	CreatedUnix   int64   `json:"created_unix_utc"`
}

func (server *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var request createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, err := ledger.NewAccountID(request.AccountID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	boothID, err := capacityBoothID(request.BoothID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	wasteType, err := submission.NewWasteType(request.WasteType)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	created, err := server.submissions.Create(r.Context(), accountID, boothID, wasteType, request.QuantityKg)
	if err != nil {
		metrics.RecordSubmission("refused")
		server.writeDomainError(w, err)
		return
	}
	metrics.RecordSubmission("created")
	writeJSON(w, http.StatusCreated, mapSubmissionResponse(created))
}

func (server *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := submission.NewSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	found, err := server.submissions.Get(r.Context(), submissionID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmissionResponse(found))
}

type approveResponse struct {
	SubmissionID   string `json:"submission_id"`
	PointsCredited int64  `json:"points_credited"`
	NewBalance     int64  `json:"new_balance"`
}

func (server *Server) handleApproveSubmission(w http.ResponseWriter, r *http.Request) {
	verifierID, err := server.requireCapability(r, capabilityVerify)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	submissionID, err := submission.NewSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	result, err := server.submissions.Approve(r.Context(), submissionID, verifierID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	metrics.RecordSubmission("approved")
	metrics.RecordPointsCredited(result.PointsCredited.Int64())
	writeJSON(w, http.StatusOK, approveResponse{
		SubmissionID:   result.SubmissionID.String(),
		PointsCredited: result.PointsCredited.Int64(),
		NewBalance:     result.NewBalance.Int64(),
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (server *Server) handleRejectSubmission(w http.ResponseWriter, r *http.Request) {
	verifierID, err := server.requireCapability(r, capabilityVerify)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	submissionID, err := submission.NewSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	var request rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := server.submissions.Reject(r.Context(), submissionID, verifierID, request.Reason); err != nil {
		server.writeDomainError(w, err)
		return
	}
	metrics.RecordSubmission("rejected")
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

type redeemRequest struct {
	AccountID      string `json:"account_id"`
	RewardID       string `json:"reward_id"`
	Quantity       int64  `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ticketResponse struct {
	TicketID      string `json:"ticket_id"`
	ReservationID string `json:"reservation_id"`
	RewardID      string `json:"reward_id"`
	AccountID     string `json:"account_id"`
	Quantity      int64  `json:"quantity"`
	PointsSpent   int64  `json:"points_spent"`
	NewBalance    int64  `json:"new_balance"`
	IssuedUnix    int64  `json:"issued_unix_utc"`
	ExpiresUnix   int64  `json:"expires_unix_utc,omitempty"`
}

func (server *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var request redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	accountID, err := ledger.NewAccountID(request.AccountID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	rewardID, err := inventory.NewRewardID(request.RewardID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	quantity, err := inventory.NewQuantity(request.Quantity)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	ticket, err := server.redemptions.Redeem(r.Context(), accountID, rewardID, quantity, request.IdempotencyKey)
	if err != nil {
		metrics.RecordRedemption("failed")
		server.writeDomainError(w, err)
		return
	}
	metrics.RecordRedemption("completed")
	metrics.RecordPointsSpent(ticket.PointsSpent.Int64())
	writeJSON(w, http.StatusCreated, ticketResponse{
		TicketID:      ticket.TicketID.String(),
		ReservationID: ticket.ReservationID.String(),
		RewardID:      ticket.RewardID.String(),
		AccountID:     ticket.AccountID.String(),
		Quantity:      ticket.Quantity.Int64(),
		PointsSpent:   ticket.PointsSpent.Int64(),
		NewBalance:    ticket.NewBalance.Int64(),
		IssuedUnix:    ticket.IssuedUnixUTC,
		ExpiresUnix:   ticket.ExpiresAtUnixUTC,
	})
}

type accountResponse struct {
	AccountID   string `json:"account_id"`
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
	Rank        string `json:"rank"`
}

func (server *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := ledger.NewAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	view, err := server.credits.Account(r.Context(), accountID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		AccountID:   view.AccountID.String(),
		Balance:     view.Balance.Int64(),
		TotalEarned: view.TotalEarned.Int64(),
		TotalSpent:  view.TotalSpent.Int64(),
		Rank:        view.Rank.String(),
	})
}

type entryResponse struct {
	EntryID       string `json:"entry_id"`
	Kind          string `json:"kind"`
	Delta         int64  `json:"delta"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	ReferenceID   string `json:"reference_id"`
	RelatedEntity string `json:"related_entity,omitempty"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	CreatedUnix   int64  `json:"created_unix_utc"`
}

func (server *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := ledger.NewAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultEntriesLimit
	}
	if limit > maxEntriesLimit {
		limit = maxEntriesLimit
	}
	entries, err := server.credits.ListEntries(r.Context(), accountID, before, limit)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	response := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, entryResponse{
			EntryID:       entry.EntryID.String(),
			Kind:          entry.Kind.String(),
			Delta:         entry.Delta.Int64(),
			BalanceBefore: entry.BalanceBefore.Int64(),
			BalanceAfter:  entry.BalanceAfter.Int64(),
			ReferenceID:   entry.ReferenceID.String(),
			RelatedEntity: entry.RelatedEntity.String(),
			Status:        entry.Status.String(),
			Reason:        entry.Reason,
			CreatedUnix:   entry.CreatedUnixUTC,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": response})
}

type adjustRequest struct {
	Delta       int64  `json:"delta"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id"`
}

func (server *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	actorID, err := server.requireCapability(r, capabilityAdjust)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	accountID, err := ledger.NewAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	var request adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	delta, err := ledger.NewDelta(request.Delta)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	if request.ReferenceID == "" {
		request.ReferenceID = uuid.NewString()
	}
	referenceID, err := ledger.NewReferenceID(request.ReferenceID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	entry, err := server.credits.Adjust(r.Context(), accountID, delta, request.Reason, actorID, referenceID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entryResponse{
		EntryID:       entry.EntryID.String(),
		Kind:          entry.Kind.String(),
		Delta:         entry.Delta.Int64(),
		BalanceBefore: entry.BalanceBefore.Int64(),
		BalanceAfter:  entry.BalanceAfter.Int64(),
		ReferenceID:   entry.ReferenceID.String(),
		Status:        entry.Status.String(),
		Reason:        entry.Reason,
		CreatedUnix:   entry.CreatedUnixUTC,
	})
}

type stockResponse struct {
	RewardID  string `json:"reward_id"`
	Total     int64  `json:"total"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
	Redeemed  int64  `json:"redeemed"`
}

func (server *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	rewardID, err := inventory.NewRewardID(chi.URLParam(r, "rewardID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	pool, err := server.stock.Stock(r.Context(), rewardID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{
		RewardID:  pool.RewardID.String(),
		Total:     pool.Total,
		Available: pool.Available,
		Reserved:  pool.Reserved,
		Redeemed:  pool.Redeemed,
	})
}

type capacityResponse struct {
	BoothID         string `json:"booth_id"`
	DateKey         string `json:"date_key"`
	UsedWeightGrams int64  `json:"used_weight_grams"`
	UsedSubmissions int64  `json:"used_submissions"`
	MaxWeightGrams  int64  `json:"max_weight_grams"`
	MaxSubmissions  int64  `json:"max_submissions_per_day"`
}

func (server *Server) handleGetCapacity(w http.ResponseWriter, r *http.Request) {
	boothID, err := capacityBoothID(chi.URLParam(r, "boothID"))
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	usage, err := server.booths.Usage(r.Context(), boothID)
	if err != nil {
		server.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capacityResponse{
		BoothID:         boothID.String(),
		DateKey:         usage.DateKey,
		UsedWeightGrams: usage.UsedWeightGrams.Int64(),
		UsedSubmissions: usage.UsedSubmissions,
		MaxWeightGrams:  usage.Limits.MaxWeightGrams.Int64(),
		MaxSubmissions:  usage.Limits.MaxSubmissionsPerDay,
	})
}

func mapSubmissionResponse(record submission.Submission) submissionResponse {
	return submissionResponse{
		SubmissionID:  record.SubmissionID.String(),
		AccountID:     record.AccountID.String(),
		BoothID:       record.BoothID.String(),
		WasteType:     record.WasteType.String(),
		QuantityGrams: record.QuantityGrams.Int64(),
		PointsEarned:  record.PointsEarned.Int64(),
		Status:        record.Status.String(),
		VerifiedBy:    record.VerifiedBy,
		RejectReason:  record.RejectReason,
		CreatedUnix:   record.CreatedUnixUTC,
	}
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}

func (server *Server) logHandlerError(err error) {
	if server.logger != nil {
		server.logger.Debug("request failed", zap.Error(err))
	}
}
