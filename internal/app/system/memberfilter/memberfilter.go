// Package memberfilter turns member list query parameters into a MongoDB
// filter. Jurisdiction scoping is applied separately by the caller.
package memberfilter

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBadHead is returned for a headOfFamily value that is neither "true"
// nor an ObjectID.
var ErrBadHead = errors.New("invalid headOfFamily")

// exact maps query parameters to the member field they match verbatim.
var exact = []struct{ param, field string }{
	{"gender", "gender"},
	{"maritalStatus", "maritalStatus"},
	{"bloodGroup", "bloodGroup"},
	{"educationLevel", "educationLevel"},
	{"occupation", "occupation"},
	{"caste", "casteDetails.caste"},
	{"subCaste", "casteDetails.subCaste"},
}

// Parse builds the filter for q. Unknown or malformed optional values are
// ignored, except headOfFamily which must be well formed.
func Parse(q url.Values) (bson.M, error) {
	var clauses []bson.M

	for _, e := range exact {
		if v := strings.TrimSpace(q.Get(e.param)); v != "" {
			clauses = append(clauses, bson.M{e.field: v})
		}
	}

	if c := ageRange(q.Get("ageRange")); c != nil {
		clauses = append(clauses, c)
	}

	switch q.Get("voterStatus") {
	case "Voter":
		clauses = append(clauses, bson.M{"age": bson.M{"$gte": 18}})
	case "Non-Voter":
		clauses = append(clauses, bson.M{"age": bson.M{"$lt": 18}})
	}

	switch q.Get("employmentStatus") {
	case "Unemployed":
		clauses = append(clauses, Unemployed())
	case "Employed":
		clauses = append(clauses, Employed())
	}

	if h := strings.TrimSpace(q.Get("headOfFamily")); h != "" {
		if h == "true" {
			clauses = append(clauses, bson.M{"headOfFamily": bson.M{"$exists": false}})
		} else {
			id, err := primitive.ObjectIDFromHex(h)
			if err != nil {
				return nil, ErrBadHead
			}
			clauses = append(clauses, bson.M{"headOfFamily": id})
		}
	}

	if s := strings.TrimSpace(q.Get("search")); s != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"name": re},
			bson.M{"surname": re},
			bson.M{"mewsId": re},
			bson.M{"mobileNumber": re},
		}})
	}

	return And(clauses...), nil
}

// And combines filters, collapsing the trivial cases.
func And(clauses ...bson.M) bson.M {
	var kept []bson.M
	for _, c := range clauses {
		if len(c) > 0 {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return bson.M{}
	case 1:
		return kept[0]
	}
	arr := make(bson.A, 0, len(kept))
	for _, c := range kept {
		arr = append(arr, c)
	}
	return bson.M{"$and": arr}
}

func ageRange(v string) bson.M {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if v == "50+" {
		return bson.M{"age": bson.M{"$gt": 50}}
	}
	lo, hi, ok := strings.Cut(v, "-")
	if !ok {
		return nil
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(lo))
	b, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil {
		return nil
	}
	return bson.M{"age": bson.M{"$gte": a, "$lte": b}}
}

func unemployedPatterns() bson.A {
	out := bson.A{}
	for _, k := range models.UnemployedOccupations {
		if k == "" {
			continue
		}
		out = append(out, primitive.Regex{Pattern: "^" + regexp.QuoteMeta(k) + "$", Options: "i"})
	}
	return out
}

// Unemployed matches members whose occupation is missing, empty or one of
// the non-employment keywords.
func Unemployed() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"occupation": bson.M{"$in": unemployedPatterns()}},
		bson.M{"occupation": nil},
		bson.M{"occupation": ""},
	}}
}

// Employed is the complement of Unemployed.
func Employed() bson.M {
	return bson.M{"$and": bson.A{
		bson.M{"occupation": bson.M{"$nin": unemployedPatterns()}},
		bson.M{"occupation": bson.M{"$ne": nil}},
		bson.M{"occupation": bson.M{"$ne": ""}},
	}}
}
