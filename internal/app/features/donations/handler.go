// internal/app/features/donations/handler.go
package donations

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	"github.com/mewsorg/mews/internal/app/store/audit"
	donationstore "github.com/mewsorg/mews/internal/app/store/donations"
	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// LivesPerAmount is how many rupees donated count as one life touched.
const LivesPerAmount = 5000

const (
	msgBadAmount   = "Amount must be greater than zero"
	msgBadMethod   = "Unsupported payment method"
	msgNoFund      = "Fund Request not found"
	msgFundClosed  = "Fund request is not accepting donations"
	msgDuplicateTx = "Transaction already recorded"
)

// Handler records donations and reports a donor's giving.
type Handler struct {
	Store        *donationstore.Store
	FundRequests *fundrequeststore.Store
	AuditLog     *auditlog.Logger
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:        donationstore.New(db),
		FundRequests: fundrequeststore.New(db),
		AuditLog:     audit,
		ErrLog:       errLog,
		Log:          logger,
	}
}

// Mine handles GET /api/donations/my-donations, newest first.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Store.ListByDonor(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list donations failed", err, "Server Error fetching donations")
		return
	}
	jsonutil.OK(w, list)
}

type statsView struct {
	TotalDonated       float64 `json:"totalDonated"`
	Donations          int64   `json:"donations"`
	ActiveSponsorships int64   `json:"activeSponsorships"`
	TaxDeduction       float64 `json:"taxDeduction"`
	LivesTouched       int64   `json:"livesTouched"`
}

func newStatsView(t donationstore.Totals) statsView {
	return statsView{
		TotalDonated:       t.Amount,
		Donations:          t.Count,
		ActiveSponsorships: t.Sponsorships,
		TaxDeduction:       math.Floor(t.Amount * 0.5),
		LivesTouched:       t.Sponsorships + int64(math.Floor(t.Amount/LivesPerAmount)),
	}
}

// Stats handles GET /api/donations/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Store.DonorTotals(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "donation stats failed", err, "Server Error fetching stats")
		return
	}
	jsonutil.OK(w, newStatsView(t))
}

type createInput struct {
	FundRequestID string  `json:"fundRequestId"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	Type          string  `json:"type"`
	TransactionID string  `json:"transactionId"`
}

func validMethod(m string) bool {
	for _, v := range models.PaymentMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Create handles POST /api/donations. Payments settle immediately; a
// donation against a fund request counts towards its target.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	var in createInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad donation body", err, "Invalid data")
		return
	}
	if in.Amount <= 0 {
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadAmount)
		return
	}
	method := strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = "UPI"
	}
	if !validMethod(method) {
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadMethod)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	donor := p.ID
	d := models.Donation{
		Donor:         &donor,
		DonorName:     p.Name,
		Type:          models.DonationCommunityPool,
		Amount:        in.Amount,
		TransactionID: strings.TrimSpace(in.TransactionID),
		PaymentMethod: method,
		Status:        models.DonationSuccess,
	}

	if raw := strings.TrimSpace(in.FundRequestID); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.Error(w, r, http.StatusNotFound, msgNoFund)
			return
		}
		fr, err := h.FundRequests.Get(ctx, id)
		if errors.Is(err, fundrequeststore.ErrNotFound) {
			jsonutil.Error(w, r, http.StatusNotFound, msgNoFund)
			return
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load fund request failed", err, "")
			return
		}
		if fr.Status == models.FundRejected || fr.Status == models.FundFrozen {
			jsonutil.Error(w, r, http.StatusBadRequest, msgFundClosed)
			return
		}
		d.FundRequest = &id
		d.Type = models.DonationCampaign
	}
	if t := strings.ToUpper(strings.TrimSpace(in.Type)); t == models.DonationCampaign || t == models.DonationCommunityPool {
		if t == models.DonationCampaign && d.FundRequest == nil {
			t = models.DonationCommunityPool
		}
		d.Type = t
	}

	d, err := h.Store.Create(ctx, d)
	switch {
	case errors.Is(err, donationstore.ErrBadAmount):
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadAmount)
		return
	case errors.Is(err, donationstore.ErrDuplicateTxn):
		jsonutil.Error(w, r, http.StatusConflict, msgDuplicateTx)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create donation failed", err, "")
		return
	}

	if d.FundRequest != nil {
		fr, err := h.FundRequests.AddCollected(ctx, *d.FundRequest, d.Amount)
		if err != nil {
			h.Log.Error("credit fund request",
				zap.String("donation_id", d.ID.Hex()),
				zap.String("fund_request_id", d.FundRequest.Hex()),
				zap.Error(err))
		} else if fr.Status == models.FundCompleted {
			h.Log.Info("fund request target reached", zap.String("fund_request_id", fr.ID.Hex()))
		}
	}

	id := d.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleDonation, audit.ActionCreate, &id, d.TransactionID)
	jsonutil.Created(w, d)
}
