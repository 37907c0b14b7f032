package pincodes_test

import (
	"strings"
	"testing"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/app/system/pincodes"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanVillage(t *testing.T) {
	tests := map[string]string{
		"Chervugattu B.O":  "CHERVUGATTU",
		"Nalgonda H.O":     "NALGONDA",
		"Miryalaguda s.o.": "MIRYALAGUDA",
		" Annaram ":        "ANNARAM",
		"Bodhan Road":      "BODHAN ROAD",
	}
	for in, want := range tests {
		assert.Equal(t, want, pincodes.CleanVillage(in), in)
	}
}

const directory = `[
 {"officename":"Chervugattu B.O","pincode":508001,"Taluk":"Narketpally","Districtname":"Nalgonda","statename":"TELANGANA"},
 {"officename":"Annaram B.O","pincode":"508254","Taluk":"Narketpally","Districtname":"Nalgonda","statename":"Telangana"},
 {"officename":"Guntur H.O","pincode":522002,"Taluk":"Guntur","Districtname":"Guntur","statename":"ANDHRA PRADESH"},
 {"officename":"","pincode":500001,"Taluk":"Hyderabad","Districtname":"Hyderabad","statename":"TELANGANA"}
]`

func TestParse(t *testing.T) {
	pins, kept, err := pincodes.Parse(strings.NewReader(directory))
	require.NoError(t, err)
	assert.Equal(t, 3, kept)
	assert.Equal(t, map[string]string{
		"NALGONDA-NARKETPALLY-CHERVUGATTU": "508001",
		"NALGONDA-NARKETPALLY-ANNARAM":     "508254",
	}, pins)

	_, _, err = pincodes.Parse(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)

	state := fx.CreateLocation(ctx, "Telangana", models.LocationState, nil)
	district := fx.CreateLocation(ctx, "Nalgonda", models.LocationDistrict, &state)
	mandal := fx.CreateLocation(ctx, "Narketpally", models.LocationMandal, &district)
	chervugattu := fx.CreateLocation(ctx, "Chervugattu", models.LocationVillage, &mandal)
	fx.CreateLocation(ctx, "Unknownpet", models.LocationVillage, &mandal)

	pins := map[string]string{"NALGONDA-NARKETPALLY-CHERVUGATTU": "508001"}
	locs := locationstore.New(db)

	res, err := pincodes.Apply(ctx, locs, pins, true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Villages)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"NALGONDA-NARKETPALLY-UNKNOWNPET"}, res.Unmatched)

	got, err := locs.Get(ctx, chervugattu.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Pincode, "dry run must not write")

	res, err = pincodes.Apply(ctx, locs, pins, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	got, err = locs.Get(ctx, chervugattu.ID)
	require.NoError(t, err)
	assert.Equal(t, "508001", got.Pincode)

	res, err = pincodes.Apply(ctx, locs, pins, false, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
}
