// internal/app/features/members/stats.go
package members

import (
	"context"
	"errors"
	"net/http"
	"strings"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ServeStats handles GET /api/members/stats: the fund-request summary for
// the caller and the requests behind it. Members see requests where they
// are the beneficiary; admins see the requests they raised.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	filter := bson.M{"requestedBy": p.ID}
	if p.Kind == models.KindMember {
		id := p.ID
		if p.MemberID != nil {
			id = *p.MemberID
		}
		filter = bson.M{"beneficiary": id}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	d, err := h.FundRequests.Dashboard(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "member stats failed", err, "")
		return
	}
	jsonutil.OK(w, d)
}

type duplicateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// duplicateLabels names each checkable field in the response message.
var duplicateLabels = map[string]string{
	"aadhaarNumber": "Aadhaar Number",
	"voterId":       "Voter ID",
	"rationCard":    "Ration Card",
}

// HandleCheckDuplicate handles POST /api/members/check-duplicate.
func (h *Handler) HandleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req duplicateRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad duplicate-check body", err, "Invalid request body")
		return
	}
	req.Field = strings.TrimSpace(req.Field)
	req.Value = strings.TrimSpace(req.Value)
	if req.Field == "" || req.Value == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, "Field and value are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	dup, err := h.Members.CheckDuplicate(ctx, req.Field, req.Value)
	if errors.Is(err, memberstore.ErrBadField) {
		jsonutil.Error(w, r, http.StatusBadRequest, "Invalid field type")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "duplicate check failed", err, "")
		return
	}
	if dup {
		jsonutil.OK(w, map[string]any{
			"isDuplicate": true,
			"message":     "This " + duplicateLabels[req.Field] + " is already registered.",
		})
		return
	}
	jsonutil.OK(w, map[string]any{"isDuplicate": false})
}
