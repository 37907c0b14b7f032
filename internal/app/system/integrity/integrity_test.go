package integrity_test

import (
	"testing"

	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/integrity"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/mewsorg/mews/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestCheck(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	tree := fx.CreateTree(ctx)
	otherMandal := fx.CreateLocation(ctx, "Damaracherla", models.LocationMandal, &tree.District)

	head := fx.CreateMember(ctx, models.Member{Surname: "Bandi", Name: "Ravi", Address: tree.Address()})
	fx.CreateMember(ctx, models.Member{Surname: "Bandi", Name: "Lakshmi", HeadOfFamily: &head.ID, Address: tree.Address()})

	gone := primitive.NewObjectID()
	orphan := fx.CreateMember(ctx, models.Member{Surname: "Gone", Name: "Kid", HeadOfFamily: &gone, Address: tree.Address()})

	wrong := tree.Address()
	wrong.Mandal = &otherMandal.ID
	mismatched := fx.CreateMember(ctx, models.Member{Surname: "Wrong", Name: "Mandal", Address: wrong})

	missing := primitive.NewObjectID()
	unknown := fx.CreateMember(ctx, models.Member{Surname: "Lost", Name: "Village", Address: models.Address{Village: &missing}})

	rep, err := integrity.New(db, false, zap.NewNop()).Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Members)
	require.Len(t, rep.OrphanedDependents, 1)
	assert.Equal(t, orphan.ID, rep.OrphanedDependents[0].ID)
	require.Len(t, rep.AddressMismatches, 1)
	assert.Equal(t, mismatched.ID, rep.AddressMismatches[0].ID)
	assert.False(t, rep.AddressMismatches[0].Repaired)
	require.Len(t, rep.UnknownVillages, 1)
	assert.Equal(t, unknown.ID, rep.UnknownVillages[0].ID)

	rep, err = integrity.New(db, true, zap.NewNop()).Check(ctx)
	require.NoError(t, err)
	require.Len(t, rep.AddressMismatches, 1)
	assert.True(t, rep.AddressMismatches[0].Repaired)

	got, err := memberstore.New(db).Get(ctx, mismatched.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Address.Mandal)
	assert.Equal(t, tree.Mandal.ID, *got.Address.Mandal)

	rep, err = integrity.New(db, false, zap.NewNop()).Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.AddressMismatches)
}

func TestMembersWithoutVillageAndAdmins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	tree := fx.CreateTree(ctx)

	fx.CreateMember(ctx, models.Member{Surname: "Has", Name: "Village", Address: tree.Address()})
	none := fx.CreateMember(ctx, models.Member{Surname: "No", Name: "Village"})

	refs, err := integrity.MembersWithoutVillage(ctx, memberstore.New(db))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, none.ID, refs[0].ID)

	fx.CreateAdmin(ctx, "placed", models.RoleVillageAdmin, "password1", &tree.Village.ID)
	floating := fx.CreateAdmin(ctx, "floating", models.RoleMandalAdmin, "password1", nil)
	fx.CreateAdmin(ctx, "root", models.RoleSuperAdmin, "password1", nil)

	admins, err := integrity.AdminsWithoutLocation(ctx, userstore.New(db))
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, floating.ID, admins[0].ID)

	counts, err := integrity.Counts(ctx, db)
	require.NoError(t, err)
	byName := map[string]int64{}
	for _, c := range counts {
		byName[c.Name] = c.Count
	}
	assert.EqualValues(t, 2, byName["members"])
	assert.EqualValues(t, 3, byName["users"])
}
