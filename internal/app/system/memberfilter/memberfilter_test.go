package memberfilter_test

import (
	"net/url"
	"testing"

	"github.com/mewsorg/mews/internal/app/system/memberfilter"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParse_Shapes(t *testing.T) {
	f, err := memberfilter.Parse(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, f)

	f, err = memberfilter.Parse(url.Values{"gender": {"Female"}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"gender": "Female"}, f)

	f, err = memberfilter.Parse(url.Values{"subCaste": {"Madiga"}, "ageRange": {"21-30"}})
	require.NoError(t, err)
	and, ok := f["$and"].(bson.A)
	require.True(t, ok)
	assert.Len(t, and, 2)

	f, err = memberfilter.Parse(url.Values{"ageRange": {"50+"}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"age": bson.M{"$gt": 50}}, f)

	f, err = memberfilter.Parse(url.Values{"ageRange": {"abc"}})
	require.NoError(t, err)
	assert.Empty(t, f)
}

func TestParse_HeadOfFamily(t *testing.T) {
	f, err := memberfilter.Parse(url.Values{"headOfFamily": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"headOfFamily": bson.M{"$exists": false}}, f)

	id := primitive.NewObjectID()
	f, err = memberfilter.Parse(url.Values{"headOfFamily": {id.Hex()}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"headOfFamily": id}, f)

	_, err = memberfilter.Parse(url.Values{"headOfFamily": {"nope"}})
	assert.ErrorIs(t, err, memberfilter.ErrBadHead)
}

func TestAnd(t *testing.T) {
	assert.Equal(t, bson.M{}, memberfilter.And())
	assert.Equal(t, bson.M{"a": 1}, memberfilter.And(bson.M{}, bson.M{"a": 1}))
	assert.Contains(t, memberfilter.And(bson.M{"a": 1}, bson.M{"b": 2}), "$and")
}

// Run the employment, voter and search filters against real documents.
func TestParse_AgainstMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := db.Collection("members")
	_, err := c.InsertMany(ctx, []any{
		bson.M{"name": "Ravi", "surname": "Kumar", "age": 40, "occupation": "Farmer", "mewsId": "MEWS-2025-24-20-000001"},
		bson.M{"name": "Lakshmi", "surname": "Kumar", "age": 35, "occupation": "HOUSEWIFE"},
		bson.M{"name": "Anil", "surname": "Rao", "age": 12, "occupation": "Student"},
		bson.M{"name": "Sita", "surname": "Rao", "age": 70},
	})
	require.NoError(t, err)

	count := func(q url.Values) int64 {
		f, err := memberfilter.Parse(q)
		require.NoError(t, err)
		n, err := c.CountDocuments(ctx, f)
		require.NoError(t, err)
		return n
	}

	assert.EqualValues(t, 1, count(url.Values{"employmentStatus": {"Employed"}}))
	assert.EqualValues(t, 3, count(url.Values{"employmentStatus": {"Unemployed"}}))
	assert.EqualValues(t, 3, count(url.Values{"voterStatus": {"Voter"}}))
	assert.EqualValues(t, 1, count(url.Values{"voterStatus": {"Non-Voter"}}))
	assert.EqualValues(t, 2, count(url.Values{"search": {"kumar"}}))
	assert.EqualValues(t, 1, count(url.Values{"search": {"000001"}}))
	assert.EqualValues(t, 1, count(url.Values{"voterStatus": {"Voter"}, "employmentStatus": {"Unemployed"}, "ageRange": {"31-40"}}))
}
