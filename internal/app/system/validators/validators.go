// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/mewsorg/mews/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the collections the API uses and attaches JSON-Schema
// validators where the server supports collMod.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("members", membersSchema())
	ensure("users", usersSchema())
	ensure("locations", locationsSchema())
	ensure("fundrequests", fundRequestsSchema())
	ensure("donations", donationsSchema())

	ensure("institutions", nil)
	ensure("notifications", nil)
	ensure("announcements", nil)
	ensure("carouselimages", nil)
	ensure("idcounters", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection creates name if missing. created is true only when this
// call made it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	if exists, listErr := collectionExists(ctx, db, name); listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

// setValidator attaches validator at "moderate" level, so legacy documents
// that predate a rule can still be updated.
func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErrorMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErrorMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErrorMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErrorMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func strEnum(vals ...string) bson.M {
	a := make(bson.A, 0, len(vals))
	for _, v := range vals {
		a = append(a, v)
	}
	return bson.M{"enum": a}
}

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

var number = bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}}

func membersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "verificationStatus"},
			"properties": bson.M{
				"name":               nonBlank,
				"verificationStatus": strEnum(models.MemberStatuses...),
				"aadhaarNumber":      bson.M{"bsonType": bson.A{"string", "null"}},
				"mewsId":             bson.M{"bsonType": bson.A{"string", "null"}},
				"age":                number,
			},
		},
	}
}

func usersSchema() bson.M {
	roles := append(append([]string{}, models.AdminRoles...), models.RoleInstitution, models.RoleMember)
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"username", "passwordHash", "role"},
			"properties": bson.M{
				"username":     nonBlank,
				"passwordHash": nonBlank,
				"role":         strEnum(roles...),
				"email":        bson.M{"bsonType": bson.A{"string", "null"}},
			},
		},
	}
}

func locationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "type"},
			"properties": bson.M{
				"name": nonBlank,
				"type": strEnum(models.LocationTypes...),
			},
		},
	}
}

func fundRequestsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"purpose", "amountRequired", "status", "requestedBy"},
			"properties": bson.M{
				"purpose":         strEnum(models.FundPurposes...),
				"amountRequired":  number,
				"amountCollected": number,
				"status": strEnum(models.FundDraft, models.FundSubmitted, models.FundPendingApproval,
					models.FundActive, models.FundCompleted, models.FundRejected, models.FundFrozen),
			},
		},
	}
}

func donationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"amount", "type", "status"},
			"properties": bson.M{
				"amount": number,
				"type":   strEnum(models.DonationCampaign, models.DonationCommunityPool),
				"status": strEnum(models.DonationInitiated, models.DonationSuccess, models.DonationFailed),
			},
		},
	}
}
