// internal/app/features/announcements/announcements.go
package announcements

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mewsorg/mews/internal/app/store/audit"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/htmlsanitize"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	msgRequired     = "Please fill in all required fields"
	msgBadTargets   = "Invalid announcement targets"
	msgBadSchedule  = "A valid scheduled date is required"
	msgUploadFailed = "Attachment upload failed"
)

// scheduleLayouts are the date forms a scheduledDate may arrive in.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseSchedule(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// selectedTargets accepts a JSON array or repeated form values.
func selectedTargets(f *uploads.Form) ([]string, error) {
	raw := f.Values["selectedTargets"]
	if len(raw) == 1 && strings.HasPrefix(strings.TrimSpace(raw[0]), "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw[0]), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func validTargetType(t string) bool {
	for _, v := range models.AnnouncementTargetTypes {
		if v == t {
			return true
		}
	}
	return false
}

// announcementView is an announcement with signed attachment URLs and the
// sender's display name.
type announcementView struct {
	models.Announcement
	SenderName string `json:"senderName,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
}

// Create handles POST /api/announcements.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)

	form, err := h.Uploads.Parse(w, r, uploads.FieldLimits{"attachments": MaxAttachments})
	if err != nil {
		var fe *uploads.FieldError
		switch {
		case errors.Is(err, uploads.ErrNotMultipart):
			h.ErrLog.LogBadRequest(w, r, "announcement not multipart", err, "Expected multipart/form-data")
		case errors.As(err, &fe):
			h.ErrLog.LogBadRequest(w, r, "announcement attachment rejected", err, fe.Field+": "+fe.Err.Error())
		default:
			h.ErrLog.LogBadRequest(w, r, "announcement form parse failed", err, msgUploadFailed)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	kept := false
	defer func() {
		if !kept {
			h.Uploads.Discard(context.WithoutCancel(ctx), form)
		}
	}()

	a := models.Announcement{
		Subject:     strings.TrimSpace(form.Get("subject")),
		Body:        htmlsanitize.PrepareBody(form.Get("body")),
		Scope:       strings.ToLower(form.Get("targetScope")),
		TargetType:  strings.ToLower(form.Get("targetType")),
		Sender:      p.ID,
		SenderRole:  p.Role,
		Attachments: form.Files["attachments"],
	}
	if a.Subject == "" || a.Body == "" || a.Scope == "" || a.TargetType == "" {
		jsonutil.Error(w, r, http.StatusBadRequest, msgRequired)
		return
	}
	if (a.Scope != models.ScopeWhole && a.Scope != models.ScopeSelected) || !validTargetType(a.TargetType) {
		jsonutil.Error(w, r, http.StatusBadRequest, msgBadTargets)
		return
	}
	if a.Scope == models.ScopeSelected {
		if a.SelectedTargets, err = selectedTargets(form); err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad selectedTargets", err, msgBadTargets)
			return
		}
	}
	if _, err := notify.TargetFilter(a); err != nil {
		h.ErrLog.LogBadRequest(w, r, "announcement targets rejected", err, msgBadTargets)
		return
	}

	switch status := strings.ToLower(form.Get("status")); {
	case status == models.AnnouncementDraft:
		a.Status = models.AnnouncementDraft
	case status == models.AnnouncementScheduled || form.Get("schedule") == "later":
		at, ok := parseSchedule(form.Get("scheduledDate"))
		if !ok {
			jsonutil.Error(w, r, http.StatusBadRequest, msgBadSchedule)
			return
		}
		a.Status = models.AnnouncementScheduled
		a.ScheduledFor = &at
	default:
		a.Status = models.AnnouncementSent
	}

	a, err = h.Store.Create(ctx, a)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create announcement failed", err, "")
		return
	}
	kept = true

	v := announcementView{Announcement: a, SenderName: p.Name}
	if a.Status == models.AnnouncementSent {
		v.Recipients = h.deliver(ctx, p, a)
	}

	id := a.ID
	h.AuditLog.Admin(ctx, r, p, audit.ModuleAnnouncement, audit.ActionCreate, &id, a.Status+": "+a.Subject)

	h.sign(ctx, &v.Announcement)
	jsonutil.Created(w, v)
}

// deliver notifies the announcement's audience within the sender's
// jurisdiction. Failures are logged; the announcement itself stands.
func (h *Handler) deliver(ctx context.Context, p *auth.Principal, a models.Announcement) int {
	scope, err := authz.MemberScope(ctx, p, h.Notify.Locations)
	if errors.Is(err, authz.ErrNoScope) {
		h.Log.Info("announcement sender has no scope", zap.String("announcement_id", a.ID.Hex()))
		return 0
	}
	if err != nil {
		h.Log.Warn("announcement scope failed", zap.String("announcement_id", a.ID.Hex()), zap.Error(err))
		return 0
	}
	n, err := h.Notify.Announce(ctx, a, scope)
	if err != nil {
		h.Log.Error("deliver announcement", zap.String("announcement_id", a.ID.Hex()), zap.Error(err))
	}
	return n
}

func (h *Handler) sign(ctx context.Context, a *models.Announcement) {
	for i := range a.Attachments {
		h.Signer.SignAll(ctx, &a.Attachments[i])
	}
}

// List handles GET /api/announcements: every announcement, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Store.List(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list announcements failed", err, "")
		return
	}

	senders := map[primitive.ObjectID]string{}
	out := make([]announcementView, 0, len(list))
	for _, a := range list {
		name, ok := senders[a.Sender]
		if !ok {
			if u, err := h.Users.GetByID(ctx, a.Sender); err == nil {
				name = u.Username
			}
			senders[a.Sender] = name
		}
		h.sign(ctx, &a)
		out = append(out, announcementView{Announcement: a, SenderName: name})
	}
	jsonutil.OK(w, out)
}
