// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryAdmin    = "admin"
	CategorySecurity = "security"
)

// Modules name the area an admin event touched.
const (
	ModuleMember       = "MEMBER"
	ModuleAdmin        = "ADMIN"
	ModuleInstitution  = "INSTITUTION"
	ModuleCarousel     = "CAROUSEL"
	ModuleAnnouncement = "ANNOUNCEMENT"
	ModuleSettings     = "SETTINGS"
	ModuleFundRequest  = "FUND_REQUEST"
	ModuleDonation     = "DONATION"
)

// Auth event types
const (
	EventLoginSuccess            = "login_success"
	EventLoginFailedUserNotFound = "login_failed_user_not_found"
	EventLoginFailedWrongSecret  = "login_failed_wrong_secret"
	EventLoginFailedUserDisabled = "login_failed_user_disabled"
	EventLoginFailedWrongRole    = "login_failed_wrong_role"
	EventLoginFailedRateLimit    = "login_failed_rate_limit"
	EventLogout                  = "logout"
	EventPasswordChanged         = "password_changed"
	EventTwoFactorToggled        = "two_factor_toggled"
	EventOTPSent                 = "otp_sent"
	EventOTPFailed               = "otp_failed"
	EventMPINCreated             = "mpin_created"
	EventMPINReset               = "mpin_reset"
	EventMPINLocked              = "mpin_locked"
	EventVerificationCodeSent    = "verification_code_sent"
	EventVerificationCodeFailed  = "verification_code_failed"
	EventEmailVerified           = "email_verified"
)

// Admin event actions
const (
	ActionCreate    = "CREATE"
	ActionUpdate    = "UPDATE"
	ActionDelete    = "DELETE"
	ActionStatus    = "STATUS"
	ActionPromote   = "PROMOTE"
	ActionPublish   = "PUBLISH"
	ActionUnpublish = "UNPUBLISH"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	// Event classification. Admin events carry Module and use the action
	// as EventType.
	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"eventType"`
	Module    string `bson:"module,omitempty" json:"module,omitempty"`

	// Who
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	ActorRole string              `bson:"actor_role,omitempty" json:"actorRole,omitempty"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"targetId,omitempty"`

	// Where in the location tree the actor operates.
	LocationID *primitive.ObjectID `bson:"location_id,omitempty" json:"locationId,omitempty"`

	IP        string `bson:"ip" json:"ip"`
	UserAgent string `bson:"user_agent,omitempty" json:"userAgent,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	ActorID   *primitive.ObjectID
	TargetID  *primitive.ObjectID
	Category  string
	EventType string
	Module    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) bson() bson.M {
	query := bson.M{}
	if f.ActorID != nil {
		query["actor_id"] = *f.ActorID
	}
	if f.TargetID != nil {
		query["target_id"] = *f.TargetID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.Module != "" {
		query["module"] = f.Module
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		query["timestamp"] = tq
	}
	return query
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates the indexes used by Query.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{
			{Key: "category", Value: 1},
			{Key: "module", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns events matching filter, newest first. Limit defaults to 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.bson())
}

// GetByActor returns recent events performed by actor.
func (s *Store) GetByActor(ctx context.Context, actor primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{ActorID: &actor, Limit: limit})
}

// GetFailedLogins returns failed sign-in attempts since the given time.
func (s *Store) GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	query := bson.M{
		"category": CategoryAuth,
		"success":  false,
		"event_type": bson.M{"$in": []string{
			EventLoginFailedUserNotFound,
			EventLoginFailedWrongSecret,
			EventLoginFailedUserDisabled,
			EventLoginFailedWrongRole,
			EventLoginFailedRateLimit,
			EventOTPFailed,
			EventMPINLocked,
		}},
		"timestamp": bson.M{"$gte": since},
	}
	cursor, err := s.c.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
