// Package dashboard holds the read-only aggregations behind the admin
// dashboard and analytics views. Every query takes a members filter that
// the caller has already scoped to the principal's jurisdiction.
package dashboard

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// Bucket is one group of an aggregation.
type Bucket struct {
	ID    any   `bson:"_id" json:"_id"`
	Count int64 `bson:"count" json:"count"`
}

// Counts are headline member numbers.
type Counts struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	New     int64 `json:"new"`
}

// ChildStat is one row of a dashboard breakdown by child location.
type ChildStat struct {
	ID           primitive.ObjectID `json:"id"`
	Name         string             `json:"name"`
	Members      int64              `json:"members"`
	Pending      int64              `json:"pending"`
	Institutions int64              `json:"institutions"`
	SOS          int                `json:"sos"`
	Status       string             `json:"status"`
}

// Metrics are the analytics headline figures.
type Metrics struct {
	TotalMembers int64   `json:"totalMembers"`
	NewMembers   int64   `json:"newMembers"`
	TotalFunds   float64 `json:"totalFunds"`
	SOSActive    int     `json:"sosActive"`
	Pending      int64   `json:"pending"`
}

// Demographics groups members along each analytics dimension.
type Demographics struct {
	Gender     []Bucket `json:"gender"`
	Occupation []Bucket `json:"occupation"`
	Caste      []Bucket `json:"caste"`
	Marital    []Bucket `json:"marital"`
	Age        []Bucket `json:"age"`
	BloodGroup []Bucket `json:"bloodGroup"`
	Voter      []Bucket `json:"voter"`
	Employment []Bucket `json:"employment"`
}

// Analytics is the full analytics payload.
type Analytics struct {
	Period       string       `json:"period"`
	Metrics      Metrics      `json:"metrics"`
	Demographics Demographics `json:"demographics"`
}

// NewMemberWindow is how far back "new members" reaches.
const NewMemberWindow = 30 * 24 * time.Hour

type Queries struct {
	members      *mongo.Collection
	institutions *mongo.Collection
	donations    *mongo.Collection
}

func New(db *mongo.Database) *Queries {
	return &Queries{
		members:      db.Collection("members"),
		institutions: db.Collection("institutions"),
		donations:    db.Collection("donations"),
	}
}

// MemberCounts returns total, pending and recently registered members.
func (q *Queries) MemberCounts(ctx context.Context, scope bson.M, now time.Time) (Counts, error) {
	var c Counts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		c.Total, err = q.members.CountDocuments(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		c.Pending, err = q.members.CountDocuments(gctx, with(scope, "verificationStatus", models.MemberPending))
		return err
	})
	g.Go(func() (err error) {
		c.New, err = q.members.CountDocuments(gctx, with(scope, "createdAt", bson.M{"$gte": now.Add(-NewMemberWindow)}))
		return err
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// FamilyCount counts households: members sharing a ration card number, or
// failing that the same house number in the same village.
func (q *Queries) FamilyCount(ctx context.Context, scope bson.M) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scope}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.M{
				"if": bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{"$rationCard.number", nil}},
					bson.M{"$ne": bson.A{"$rationCard.number", ""}},
				}},
				"then": "$rationCard.number",
				"else": bson.M{"$concat": bson.A{
					bson.M{"$ifNull": bson.A{"$address.houseNumber", "UNK"}},
					"_",
					bson.M{"$toString": "$address.village"},
				}},
			}},
		}}},
		{{Key: "$count", Value: "families"}},
	}
	var rows []struct {
		Families int64 `bson:"families"`
	}
	if err := q.aggregate(ctx, q.members, pipeline, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Families, nil
}

// InstitutionCount counts institutions whose address mentions any of names.
// No names means every institution.
func (q *Queries) InstitutionCount(ctx context.Context, names ...string) (int64, error) {
	return q.institutions.CountDocuments(ctx, AddressMatch(names...))
}

// AddressMatch builds the fullAddress filter used to scope institutions by
// location name.
func AddressMatch(names ...string) bson.M {
	if len(names) == 0 {
		return bson.M{}
	}
	pattern := ""
	for i, n := range names {
		if i > 0 {
			pattern += "|"
		}
		pattern += regexp.QuoteMeta(n)
	}
	return bson.M{"fullAddress": primitive.Regex{Pattern: pattern, Options: "i"}}
}

// BreakdownByChild computes per-location stats for each child, matching
// members on field (address.village or address.mandal).
func (q *Queries) BreakdownByChild(ctx context.Context, children []models.Location, field string) ([]ChildStat, error) {
	out := make([]ChildStat, len(children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, child := range children {
		g.Go(func() error {
			scope := bson.M{field: child.ID}
			members, err := q.members.CountDocuments(gctx, scope)
			if err != nil {
				return fmt.Errorf("%s members: %w", child.Name, err)
			}
			pending, err := q.members.CountDocuments(gctx, with(scope, "verificationStatus", models.MemberPending))
			if err != nil {
				return fmt.Errorf("%s pending: %w", child.Name, err)
			}
			insts, err := q.InstitutionCount(gctx, child.Name)
			if err != nil {
				return fmt.Errorf("%s institutions: %w", child.Name, err)
			}
			out[i] = ChildStat{
				ID:           child.ID,
				Name:         child.Name,
				Members:      members,
				Pending:      pending,
				Institutions: insts,
				Status:       "Active",
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalFunds sums successful donations.
func (q *Queries) TotalFunds(ctx context.Context) (float64, error) {
	var rows []struct {
		Total float64 `bson:"total"`
	}
	err := q.aggregate(ctx, q.donations, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.DonationSuccess}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}, &rows)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Total, nil
}

var ageExpr = bson.M{"$ifNull": bson.A{"$age", 0}}

// Analytics runs every demographic aggregation over scope concurrently.
func (q *Queries) Analytics(ctx context.Context, scope bson.M, now time.Time) (Analytics, error) {
	var a Analytics
	a.Period = "Last 30 Days"
	d := &a.Demographics

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := q.MemberCounts(gctx, scope, now)
		a.Metrics.TotalMembers, a.Metrics.Pending, a.Metrics.NewMembers = c.Total, c.Pending, c.New
		return err
	})
	g.Go(func() (err error) {
		a.Metrics.TotalFunds, err = q.TotalFunds(gctx)
		return err
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, "$gender", nil, &d.Gender)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, "$occupation", mongo.Pipeline{
			{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
			{{Key: "$limit", Value: 10}},
		}, &d.Occupation)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, "$casteDetails.subCaste", nil, &d.Caste)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{"case": bson.M{"$eq": bson.A{"$maritalStatus", "Married"}}, "then": "Married"},
				bson.M{"case": bson.M{"$eq": bson.A{"$maritalStatus", "Widowed"}}, "then": "Widowed"},
				bson.M{"case": bson.M{"$eq": bson.A{"$maritalStatus", "Divorced"}}, "then": "Divorced"},
			},
			"default": "Unmarried",
		}}, nil, &d.Marital)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, bson.M{"$switch": bson.M{
			"branches": bson.A{
				bson.M{"case": bson.M{"$lte": bson.A{ageExpr, 10}}, "then": "1-10"},
				bson.M{"case": bson.M{"$lte": bson.A{ageExpr, 20}}, "then": "11-20"},
				bson.M{"case": bson.M{"$lte": bson.A{ageExpr, 30}}, "then": "21-30"},
				bson.M{"case": bson.M{"$lte": bson.A{ageExpr, 40}}, "then": "31-40"},
				bson.M{"case": bson.M{"$lte": bson.A{ageExpr, 50}}, "then": "41-50"},
			},
			"default": "50+",
		}}, mongo.Pipeline{{{Key: "$sort", Value: bson.M{"_id": 1}}}}, &d.Age)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, bson.M{"$ifNull": bson.A{"$bloodGroup", "Unknown"}}, nil, &d.BloodGroup)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, bson.M{"$cond": bson.M{
			"if":   bson.M{"$gte": bson.A{ageExpr, 18}},
			"then": "Voter",
			"else": "Non-Voter",
		}}, nil, &d.Voter)
	})
	g.Go(func() error {
		return q.groupBy(gctx, scope, bson.M{"$cond": bson.M{
			"if": bson.M{"$in": bson.A{
				bson.M{"$toLower": bson.M{"$ifNull": bson.A{"$occupation", ""}}},
				models.UnemployedOccupations,
			}},
			"then": "Unemployed",
			"else": "Employed",
		}}, nil, &d.Employment)
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}
	return a, nil
}

func (q *Queries) groupBy(ctx context.Context, scope bson.M, key any, tail mongo.Pipeline, out *[]Bucket) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scope}},
		{{Key: "$group", Value: bson.M{"_id": key, "count": bson.M{"$sum": 1}}}},
	}
	pipeline = append(pipeline, tail...)
	rows := []Bucket{}
	if err := q.aggregate(ctx, q.members, pipeline, &rows); err != nil {
		return err
	}
	*out = rows
	return nil
}

func (q *Queries) aggregate(ctx context.Context, c *mongo.Collection, pipeline mongo.Pipeline, out any) error {
	cur, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

// with returns a copy of scope with one more condition. Scopes that
// already use key are combined under $and.
func with(scope bson.M, key string, value any) bson.M {
	out := bson.M{}
	for k, v := range scope {
		out[k] = v
	}
	if _, clash := out[key]; clash {
		return bson.M{"$and": bson.A{scope, bson.M{key: value}}}
	}
	out[key] = value
	return out
}
