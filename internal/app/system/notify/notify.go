// Package notify creates in-app notifications and sends the matching
// emails for registrations, status changes, promotions and announcements.
package notify

import (
	"context"
	"fmt"
	"strings"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/app/system/mailer"
	"github.com/mewsorg/mews/internal/app/system/memberfilter"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Related model names stored on notifications.
const (
	RelatedMember       = "Member"
	RelatedAnnouncement = "Announcement"
	RelatedFundRequest  = "FundRequest"
)

// Service fans notifications out to recipients. Mailer may be nil.
type Service struct {
	Notifications *notificationstore.Store
	Users         *userstore.Store
	Members       *memberstore.Store
	Locations     authz.LocationSource
	Mailer        *mailer.Mailer
	Log           *zap.Logger
	FrontendURL   string
}

// Notify persists one notification.
func (s *Service) Notify(ctx context.Context, recipient primitive.ObjectID, typ, title, message string, relatedID *primitive.ObjectID, relatedModel string) error {
	_, err := s.Notifications.Create(ctx, models.Notification{
		Recipient:    recipient,
		Type:         typ,
		Title:        title,
		Message:      message,
		RelatedID:    relatedID,
		RelatedModel: relatedModel,
	})
	return err
}

// registrationReviewers pairs each address level with the admin role that
// reviews registrations there.
func registrationReviewers(addr models.Address) []struct {
	loc  *primitive.ObjectID
	role string
} {
	return []struct {
		loc  *primitive.ObjectID
		role string
	}{
		{addr.Village, models.RoleVillageAdmin},
		{addr.Mandal, models.RoleMandalAdmin},
		{addr.Mandal, models.RoleMunicipalityAdmin},
		{addr.District, models.RoleDistrictAdmin},
	}
}

// NotifyAdminsOfRegistration tells the village, mandal and district admins
// of m's address that a registration awaits review. It returns how many
// admins were notified.
func (s *Service) NotifyAdminsOfRegistration(ctx context.Context, m models.Member) (int, error) {
	seen := map[primitive.ObjectID]bool{}
	var batch []models.Notification
	msg := fmt.Sprintf("%s (%s) has registered and is awaiting verification.", m.FullName(), m.MewsID)
	for _, rv := range registrationReviewers(m.Address) {
		if rv.loc == nil {
			continue
		}
		admins, err := s.Users.AdminsFor(ctx, *rv.loc, rv.role)
		if err != nil {
			return 0, fmt.Errorf("admins for %s: %w", rv.role, err)
		}
		for _, a := range admins {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			id := m.ID
			batch = append(batch, models.Notification{
				Recipient:    a.ID,
				Type:         models.NotifyApplication,
				Title:        "New Member Registration",
				Message:      msg,
				RelatedID:    &id,
				RelatedModel: RelatedMember,
			})
		}
	}
	return s.Notifications.CreateMany(ctx, batch)
}

// NotifyMemberStatus records a status change for the member and emails
// them when they gave an address.
func (s *Service) NotifyMemberStatus(ctx context.Context, m models.Member, notes string) error {
	status := strings.ReplaceAll(m.VerificationStatus, "_", " ")
	typ := models.NotifyApplication
	switch m.VerificationStatus {
	case models.MemberActive, models.MemberApprovedVillage, models.MemberApprovedMandal:
		typ = models.NotifySuccess
	case models.MemberRejected:
		typ = models.NotifyAlert
	}
	msg := "Your application status is now " + status + "."
	if notes != "" {
		msg += " Notes: " + notes
	}
	id := m.ID
	if err := s.Notify(ctx, m.ID, typ, "Application Status Updated", msg, &id, RelatedMember); err != nil {
		return err
	}
	if m.Email != "" {
		email := mailer.BuildStatusEmail(mailer.StatusEmailData{
			Name:   m.Name,
			MewsID: m.MewsID,
			Status: m.VerificationStatus,
			Notes:  notes,
		})
		email.To = m.Email
		s.send(email)
	}
	return nil
}

// SendWelcome emails a newly registered member. Members without an email
// are skipped.
func (s *Service) SendWelcome(m models.Member) {
	if m.Email == "" {
		s.Log.Debug("skip welcome email, no address", zap.String("member_id", m.ID.Hex()))
		return
	}
	email := mailer.BuildWelcomeEmail(mailer.WelcomeEmailData{
		Name:        m.Name,
		Surname:     m.Surname,
		MewsID:      m.MewsID,
		MemberID:    m.ID.Hex(),
		FrontendURL: s.FrontendURL,
	})
	email.To = m.Email
	s.send(email)
}

// SendPromotion emails a member who was made an admin.
func (s *Service) SendPromotion(m models.Member, u models.User, locationName string) {
	if m.Email == "" {
		return
	}
	email := mailer.BuildPromotionEmail(mailer.PromotionEmailData{
		Name:         m.Name,
		Surname:      m.Surname,
		Role:         u.Role,
		LocationName: locationName,
		MemberID:     m.ID.Hex(),
		Username:     u.Username,
		FrontendURL:  s.FrontendURL,
	})
	email.To = m.Email
	s.send(email)
}

func (s *Service) send(email mailer.Email) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.Send(email); err != nil {
		s.Log.Warn("email failed", zap.String("to", email.To), zap.Error(err))
	}
}

// TargetFilter turns an announcement's audience into a members query.
// Whole-scope and state announcements match everyone; selections are
// location, member or occupation lists.
func TargetFilter(a models.Announcement) (bson.M, error) {
	if a.Scope != models.ScopeSelected || a.TargetType == "state" {
		return bson.M{}, nil
	}
	if a.TargetType == "occupation" {
		if len(a.SelectedTargets) == 0 {
			return nil, fmt.Errorf("no occupations selected")
		}
		return bson.M{"occupation": bson.M{"$in": a.SelectedTargets}}, nil
	}

	field := map[string]string{
		"villages":  "address.village",
		"mandals":   "address.mandal",
		"districts": "address.district",
		"members":   "_id",
	}[a.TargetType]
	if field == "" {
		return nil, fmt.Errorf("unknown target type %q", a.TargetType)
	}
	ids := make([]primitive.ObjectID, 0, len(a.SelectedTargets))
	for _, hex := range a.SelectedTargets {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", hex, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no %s selected", a.TargetType)
	}
	return bson.M{field: bson.M{"$in": ids}}, nil
}

// SenderScope rebuilds the member scope of an announcement's sender.
func (s *Service) SenderScope(ctx context.Context, sender primitive.ObjectID) (authz.Scope, error) {
	u, err := s.Users.GetByID(ctx, sender)
	if err != nil {
		return authz.Scope{}, fmt.Errorf("sender: %w", err)
	}
	return authz.MemberScope(ctx, &auth.Principal{
		ID:               u.ID,
		Kind:             models.KindUser,
		Role:             u.Role,
		AssignedLocation: u.AssignedLocation,
	}, s.Locations)
}

// Announce notifies every member the announcement targets within the
// sender's scope. It returns the number of notifications written.
func (s *Service) Announce(ctx context.Context, a models.Announcement, scope authz.Scope) (int, error) {
	target, err := TargetFilter(a)
	if err != nil {
		return 0, err
	}
	ids, err := s.Members.IDs(ctx, memberfilter.And(scope.Filter(), target))
	if err != nil {
		return 0, err
	}
	related := a.ID
	batch := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, models.Notification{
			Recipient:    id,
			Type:         models.NotifyInfo,
			Title:        a.Subject,
			Message:      summary(a.Body),
			RelatedID:    &related,
			RelatedModel: RelatedAnnouncement,
		})
	}
	n, err := s.Notifications.CreateMany(ctx, batch)
	if err != nil {
		return n, err
	}
	s.Log.Info("announcement delivered",
		zap.String("announcement_id", a.ID.Hex()),
		zap.Int("recipients", n))
	return n, nil
}

// summary reduces an HTML body to a short plain-text preview.
func summary(body string) string {
	var b strings.Builder
	inTag := false
	for _, r := range body {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if len([]rune(out)) > 200 {
		out = string([]rune(out)[:200]) + "..."
	}
	return out
}
