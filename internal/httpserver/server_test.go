package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/GreenLoopLabs/greenledger/pkg/access"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

type stubSubmissions struct {
	created    submission.Submission
	createErr  error
	approveRes submission.ApprovalResult
	approveErr error
	rejectErr  error
	lastVerifier string
}

func (stub *stubSubmissions) Create(_ context.Context, _ ledger.AccountID, _ capacity.BoothID, _ submission.WasteType, _ float64) (submission.Submission, error) {
	return stub.created, stub.createErr
}

func (stub *stubSubmissions) Approve(_ context.Context, _ submission.SubmissionID, verifierID string) (submission.ApprovalResult, error) {
	stub.lastVerifier = verifierID
	return stub.approveRes, stub.approveErr
}

func (stub *stubSubmissions) Reject(_ context.Context, _ submission.SubmissionID, verifierID string, _ string) error {
	stub.lastVerifier = verifierID
	return stub.rejectErr
}

func (stub *stubSubmissions) Get(_ context.Context, _ submission.SubmissionID) (submission.Submission, error) {
	return stub.created, stub.createErr
}

type stubRedemptions struct {
	ticket redemption.Ticket
	err    error
}

func (stub *stubRedemptions) Redeem(_ context.Context, _ ledger.AccountID, _ inventory.RewardID, _ inventory.Quantity, _ string) (redemption.Ticket, error) {
	return stub.ticket, stub.err
}

type stubLedger struct {
	entry     ledger.Entry
	adjustErr error
	view      ledger.AccountView
	entries   []ledger.Entry
	lastActor string
}

func (stub *stubLedger) Adjust(_ context.Context, _ ledger.AccountID, _ ledger.Delta, _ string, actorID string, _ ledger.ReferenceID) (ledger.Entry, error) {
	stub.lastActor = actorID
	return stub.entry, stub.adjustErr
}

func (stub *stubLedger) Account(_ context.Context, _ ledger.AccountID) (ledger.AccountView, error) {
	return stub.view, nil
}

func (stub *stubLedger) ListEntries(_ context.Context, _ ledger.AccountID, _ int64, _ int) ([]ledger.Entry, error) {
	return stub.entries, nil
}

type stubInventory struct {
	pool inventory.Pool
	err  error
}

func (stub *stubInventory) Stock(_ context.Context, _ inventory.RewardID) (inventory.Pool, error) {
	return stub.pool, stub.err
}

type stubCapacity struct {
	usage capacity.Usage
	err   error
}

func (stub *stubCapacity) Usage(_ context.Context, _ capacity.BoothID) (capacity.Usage, error) {
	return stub.usage, stub.err
}

type fixture struct {
	server      *Server
	submissions *stubSubmissions
	redemptions *stubRedemptions
	credits     *stubLedger
	inventory   *stubInventory
	capacity    *stubCapacity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	submissions := &stubSubmissions{}
	redemptions := &stubRedemptions{}
	credits := &stubLedger{}
	stock := &stubInventory{}
	booths := &stubCapacity{}
	directory := access.NewStaticDirectory(map[string]access.CapabilitySet{
		"operator-1": access.NewCapabilitySet(access.Capability{Module: "submission", Action: "verify"}),
		"admin-1":    access.AllCapabilities(),
	})
	server := NewServer(submissions, redemptions, credits, stock, booths, directory, zap.NewNop())
	return &fixture{
		server:      server,
		submissions: submissions,
		redemptions: redemptions,
		credits:     credits,
		inventory:   stock,
		capacity:    booths,
	}
}

func (f *fixture) do(t *testing.T, method, path, actorID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &payload)
	if actorID != "" {
		request.Header.Set(actorHeader, actorID)
	}
	recorder := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func mustSubmission(t *testing.T) submission.Submission {
	t.Helper()
	submissionID, err := submission.NewSubmissionID("sub-1")
	if err != nil {
		t.Fatalf("submission id: %v", err)
	}
	accountID, err := ledger.NewAccountID("resident-1")
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	boothID, err := capacity.NewBoothID("booth-1")
	if err != nil {
		t.Fatalf("booth id: %v", err)
	}
	return submission.Submission{
		SubmissionID:  submissionID,
		AccountID:     accountID,
		BoothID:       boothID,
		WasteType:     "plastic",
		QuantityGrams: 10_000,
		PointsEarned:  120,
		Status:        submission.StatusPending,
	}
}

func TestCreateSubmissionReturnsCreated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.submissions.created = mustSubmission(t)

	recorder := f.do(t, http.MethodPost, "/v1/submissions", "", createSubmissionRequest{
		AccountID:  "resident-1",
		BoothID:    "booth-1",
		WasteType:  "plastic",
		QuantityKg: 10,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
	}
	var response submissionResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.PointsEarned != 120 || response.Status != "pending" {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestCreateSubmissionMapsCapacityExceeded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.submissions.createErr = fmt.Errorf("%w: daily weight limit reached", submission.ErrCapacityExceeded)

	recorder := f.do(t, http.MethodPost, "/v1/submissions", "", createSubmissionRequest{
		AccountID:  "resident-1",
		BoothID:    "booth-1",
		WasteType:  "plastic",
		QuantityKg: 10,
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
}

func TestApproveRequiresVerifyCapability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/v1/submissions/sub-1/approve", "", nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without actor, got %d", recorder.Code)
	}

	recorder = f.do(t, http.MethodPost, "/v1/submissions/sub-1/approve", "stranger", nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown actor, got %d", recorder.Code)
	}
}

func TestApprovePassesVerifierThrough(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	submissionID, err := submission.NewSubmissionID("sub-1")
	if err != nil {
		t.Fatalf("submission id: %v", err)
	}
	f.submissions.approveRes = submission.ApprovalResult{
		SubmissionID:   submissionID,
		PointsCredited: 120,
		NewBalance:     120,
	}

	recorder := f.do(t, http.MethodPost, "/v1/submissions/sub-1/approve", "operator-1", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body)
	}
	if f.submissions.lastVerifier != "operator-1" {
		t.Fatalf("expected verifier operator-1, got %q", f.submissions.lastVerifier)
	}
	var response approveResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.PointsCredited != 120 || response.NewBalance != 120 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestApproveMapsStateConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.submissions.approveErr = fmt.Errorf("%w: submission is approved", submission.ErrInvalidStateTransition)

	recorder := f.do(t, http.MethodPost, "/v1/submissions/sub-1/approve", "operator-1", nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", recorder.Code)
	}
}

func TestRejectRequiresBodyAndCapability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/v1/submissions/sub-1/reject", "operator-1", rejectRequest{Reason: "contaminated"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body)
	}

	recorder = f.do(t, http.MethodPost, "/v1/submissions/sub-1/reject", "", rejectRequest{Reason: "contaminated"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without actor, got %d", recorder.Code)
	}
}

func TestRedeemReturnsTicket(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ticketID, err := redemption.NewTicketID("ticket-1")
	if err != nil {
		t.Fatalf("ticket id: %v", err)
	}
	reservationID, err := inventory.NewReservationID("hold-1")
	if err != nil {
		t.Fatalf("reservation id: %v", err)
	}
	rewardID, err := inventory.NewRewardID("reward-voucher")
	if err != nil {
		t.Fatalf("reward id: %v", err)
	}
	accountID, err := ledger.NewAccountID("resident-1")
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	f.redemptions.ticket = redemption.Ticket{
		TicketID:      ticketID,
		ReservationID: reservationID,
		RewardID:      rewardID,
		AccountID:     accountID,
		Quantity:      2,
		PointsSpent:   200,
		NewBalance:    300,
	}

	recorder := f.do(t, http.MethodPost, "/v1/redemptions", "", redeemRequest{
		AccountID:      "resident-1",
		RewardID:       "reward-voucher",
		Quantity:       2,
		IdempotencyKey: "redeem-key-1",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
	}
	var response ticketResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.PointsSpent != 200 || response.NewBalance != 300 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestRedeemMapsEligibilityViolations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.redemptions.err = &redemption.NotEligibleError{Violations: []string{
		"balance 100 below required 200",
		"rank bronze below required silver",
	}}

	recorder := f.do(t, http.MethodPost, "/v1/redemptions", "", redeemRequest{
		AccountID:      "resident-1",
		RewardID:       "reward-voucher",
		Quantity:       1,
		IdempotencyKey: "redeem-key-2",
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	var response struct {
		Error struct {
			Violations []string `json:"violations"`
		} `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(response.Error.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", response.Error)
	}
}

func TestAdjustRequiresAdjustCapability(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/v1/accounts/resident-1/adjustments", "operator-1", adjustRequest{
		Delta:  -50,
		Reason: "damaged goods claim",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for verifier-only actor, got %d", recorder.Code)
	}
}

func TestAdjustRecordsEntryForAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entryID, err := ledger.NewEntryID("entry-1")
	if err != nil {
		t.Fatalf("entry id: %v", err)
	}
	referenceID, err := ledger.NewReferenceID("adjust-1")
	if err != nil {
		t.Fatalf("reference id: %v", err)
	}
	delta, err := ledger.NewDelta(-50)
	if err != nil {
		t.Fatalf("delta: %v", err)
	}
	f.credits.entry = ledger.Entry{
		EntryID:     entryID,
		Kind:        ledger.KindAdjustment,
		Delta:       delta,
		ReferenceID: referenceID,
		Status:      ledger.StatusCompleted,
	}

	recorder := f.do(t, http.MethodPost, "/v1/accounts/resident-1/adjustments", "admin-1", adjustRequest{
		Delta:  -50,
		Reason: "damaged goods claim",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body)
	}
	if f.credits.lastActor != "admin-1" {
		t.Fatalf("expected actor admin-1, got %q", f.credits.lastActor)
	}
}

func TestGetAccountReturnsRank(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	accountID, err := ledger.NewAccountID("resident-1")
	if err != nil {
		t.Fatalf("account id: %v", err)
	}
	f.credits.view = ledger.AccountView{
		Account: ledger.Account{AccountID: accountID, Balance: 300, TotalEarned: 2_500, TotalSpent: 2_200},
		Rank:    ledger.RankGold,
	}

	recorder := f.do(t, http.MethodGet, "/v1/accounts/resident-1", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response accountResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Rank != "gold" || response.Balance != 300 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestGetStockReturnsPool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rewardID, err := inventory.NewRewardID("reward-voucher")
	if err != nil {
		t.Fatalf("reward id: %v", err)
	}
	f.inventory.pool = inventory.Pool{RewardID: rewardID, Total: 5, Available: 2, Reserved: 0, Redeemed: 3}

	recorder := f.do(t, http.MethodGet, "/v1/rewards/reward-voucher/stock", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response stockResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Available != 2 || response.Redeemed != 3 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestGetStockMapsUnknownReward(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.inventory.err = fmt.Errorf("%w: reward-missing", inventory.ErrUnknownReward)

	recorder := f.do(t, http.MethodGet, "/v1/rewards/reward-missing/stock", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestGetCapacityReturnsUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.capacity.usage = capacity.Usage{
		DateKey:         "2026-09-01",
		UsedWeightGrams: 95_000,
		UsedSubmissions: 12,
		Limits: capacity.Limits{
			MaxWeightGrams:       100_000,
			MaxSubmissionsPerDay: 50,
		},
	}

	recorder := f.do(t, http.MethodGet, "/v1/booths/booth-1/capacity", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response capacityResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.UsedWeightGrams != 95_000 || response.MaxWeightGrams != 100_000 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	recorder := f.do(t, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
