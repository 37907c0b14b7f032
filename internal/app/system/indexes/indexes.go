// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
independently and idempotently; problems are aggregated so startup can
fail with the full picture.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	sets := []struct {
		name   string
		models []mongo.IndexModel
	}{
		{"members", membersIndexes()},
		{"users", usersIndexes()},
		{"locations", locationsIndexes()},
		{"institutions", institutionsIndexes()},
		{"fundrequests", fundRequestsIndexes()},
		{"donations", donationsIndexes()},
		{"notifications", notificationsIndexes()},
		{"announcements", announcementsIndexes()},
		{"carouselimages", carouselIndexes()},
		{"idcounters", idCountersIndexes()},
		{"village_settings", settingsIndexes()},
	}

	var problems []string
	for _, s := range sets {
		if err := ensureIndexSet(ctx, db.Collection(s.name), s.models); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconciliation                                                             */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// ensureIndexSet makes coll carry every index in models. An index with the
// same keys but a different name or uniqueness is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", boolVal(unique)))

		if ex, ok := existing[sig]; ok {
			if boolVal(unique) == boolVal(ex.Unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && boolVal(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present on %s)", coll.Name(), name, sig))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

// nonEmptyString limits a unique index to documents where field is a real
// value; legacy documents carry empty strings or nothing.
func nonEmptyString(field string) bson.M {
	return bson.M{field: bson.M{"$type": "string", "$gt": ""}}
}

func membersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "aadhaarNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_members_aadhaar").
				SetPartialFilterExpression(nonEmptyString("aadhaarNumber")),
		},
		{
			Keys: bson.D{{Key: "mewsId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_members_mewsid").
				SetPartialFilterExpression(nonEmptyString("mewsId")),
		},
		{Keys: bson.D{{Key: "voterId.epicNumber", Value: 1}}, Options: options.Index().SetName("idx_members_epic")},
		{Keys: bson.D{{Key: "rationCard.number", Value: 1}}, Options: options.Index().SetName("idx_members_rationcard")},
		{Keys: bson.D{{Key: "mobileNumber", Value: 1}}, Options: options.Index().SetName("idx_members_mobile")},
		{Keys: bson.D{{Key: "headOfFamily", Value: 1}}, Options: options.Index().SetName("idx_members_head")},
		// Scope filters; name_ci/_id trails each so scoped lists page from the index.
		{
			Keys:    bson.D{{Key: "address.village", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_members_village_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "address.mandal", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_members_mandal_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "address.district", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_members_district_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_members_nameci_id"),
		},
		{
			Keys:    bson.D{{Key: "verificationStatus", Value: 1}},
			Options: options.Index().SetName("idx_members_status"),
		},
		{
			Keys:    bson.D{{Key: "otpExpires", Value: 1}},
			Options: options.Index().SetName("idx_members_otpexpires").SetSparse(true),
		},
	}
}

func usersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_usernameci"),
		},
		{
			Keys: bson.D{{Key: "mobileNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_mobile").
				SetPartialFilterExpression(nonEmptyString("mobileNumber")),
		},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("idx_users_email")},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "assignedLocation", Value: 1}},
			Options: options.Index().SetName("idx_users_role_location"),
		},
		{Keys: bson.D{{Key: "memberId", Value: 1}}, Options: options.Index().SetName("idx_users_member")},
	}
}

func locationsIndexes() []mongo.IndexModel {
	// Names repeat across the state (and occasionally under one mandal), so
	// nothing here is unique; the store checks for duplicates on create.
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "parent", Value: 1}, {Key: "type", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_locations_parent_type_name"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_locations_type_nameci"),
		},
		{
			Keys:    bson.D{{Key: "ancestors.locationId", Value: 1}},
			Options: options.Index().SetName("idx_locations_ancestors"),
		},
	}
}

func institutionsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "verificationStatus", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_institutions_status_created"),
		},
		{Keys: bson.D{{Key: "mobileNumber", Value: 1}}, Options: options.Index().SetName("idx_institutions_mobile")},
	}
}

func fundRequestsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "beneficiary", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_fundrequests_beneficiary_created"),
		},
		{
			Keys:    bson.D{{Key: "requestedBy", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_fundrequests_requestedby_created"),
		},
		{
			Keys:    bson.D{{Key: "locationScope", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_fundrequests_location_status"),
		},
	}
}

func donationsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "donor", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_donations_donor_created"),
		},
		{Keys: bson.D{{Key: "fundRequest", Value: 1}}, Options: options.Index().SetName("idx_donations_fundrequest")},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_donations_status"),
		},
		{
			Keys: bson.D{{Key: "transactionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_donations_txn").
				SetPartialFilterExpression(nonEmptyString("transactionId")),
		},
	}
}

func notificationsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_notifications_recipient_created"),
		},
		{
			Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "isRead", Value: 1}},
			Options: options.Index().SetName("idx_notifications_recipient_read"),
		},
	}
}

func announcementsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_announcements_created")},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduledFor", Value: 1}},
			Options: options.Index().SetName("idx_announcements_status_scheduled"),
		},
	}
}

func carouselIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "order", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_carousel_active_order"),
		},
	}
}

func idCountersIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_idcounters_key")},
	}
}

func settingsIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_settings_location")},
	}
}
