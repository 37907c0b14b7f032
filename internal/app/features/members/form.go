// internal/app/features/members/form.go
package members

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errUnknownVillage = errors.New("unknown village")
	errBadFamily      = errors.New("invalid familyMembers")
)

// parseDate accepts a calendar date or an RFC 3339 timestamp. Anything
// else is treated as absent.
func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02-01-2006", "02/01/2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// refOrNil parses an optional ObjectID form value.
func refOrNil(v string) *primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	return &id
}

// resolveVillage finds a village by id or by case-insensitive name.
func (h *Handler) resolveVillage(ctx context.Context, ref string) (models.Location, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Location{}, errUnknownVillage
	}
	var (
		loc models.Location
		err error
	)
	if id, perr := primitive.ObjectIDFromHex(ref); perr == nil {
		loc, err = h.Locations.Get(ctx, id)
	} else {
		loc, err = h.LocStore.FindByName(ctx, ref, models.LocationVillage)
	}
	if errors.Is(err, locationstore.ErrNotFound) {
		return models.Location{}, errUnknownVillage
	}
	if err != nil {
		return models.Location{}, err
	}
	if loc.Type != models.LocationVillage {
		return models.Location{}, errUnknownVillage
	}
	return loc, nil
}

// placeIn fills the location refs of addr from village: its parent is the
// mandal and the district and state come from its ancestors.
func placeIn(addr *models.Address, village models.Location) {
	vid := village.ID
	addr.Village = &vid
	if village.Parent != nil {
		m := *village.Parent
		addr.Mandal = &m
	}
	if d, ok := village.AncestorOfType(models.LocationDistrict); ok {
		id := d.LocationID
		addr.District = &id
	}
	if s, ok := village.AncestorOfType(models.LocationState); ok {
		addr.State = s.Name
	}
	if addr.PinCode == "" {
		addr.PinCode = village.Pincode
	}
}

// addressFields reads the free-text part of an address. prefix is
// "present" or "perm".
func addressFields(f *uploads.Form, prefix string) models.Address {
	a := models.Address{
		HouseNumber:  f.Get(prefix + "HouseNo"),
		Street:       f.Get(prefix + "Street"),
		PinCode:      f.Get(prefix + "Pincode"),
		Landmark:     f.Get(prefix + "Landmark"),
		Constituency: refOrNil(f.Get(prefix + "Constituency")),
	}
	if prefix == "present" {
		a.ResidencyType = f.Get("residenceType")
		a.WardNumber = f.Get("presentWardNumber")
		a.Municipality = refOrNil(f.Get("presentMunicipality"))
	}
	return a
}

// memberFromForm maps the flat registration fields onto a Member. File
// refs come from the stored uploads. Location refs are left to the caller.
func memberFromForm(f *uploads.Form) models.Member {
	m := models.Member{
		Surname:         f.Get("surname"),
		Name:            f.Get("name"),
		FatherName:      f.Get("fatherName"),
		DOB:             parseDate(f.Get("dob")),
		Age:             f.Int("age"),
		Gender:          f.Get("gender"),
		Occupation:      f.Get("occupation"),
		JobSector:       f.Get("jobSector"),
		JobOrganization: f.Get("jobOrganization"),
		JobDesignation:  f.Get("jobDesignation"),
		EducationLevel:  f.Get("educationLevel"),
		MobileNumber:    authutil.NormalizeMobile(f.Get("mobileNumber")),
		BloodGroup:      f.Get("bloodGroup"),
		Email:           strings.ToLower(f.Get("email")),
		AlternateMobile: f.Get("alternateMobile"),
		AadhaarNumber:   f.Get("aadhaarNumber"),
		MaritalStatus:   f.Get("maritalStatus"),

		CasteDetails: models.CasteDetails{
			Caste:               f.Get("caste"),
			SubCaste:            f.Get("subCaste"),
			CommunityCertNumber: f.Get("communityCertNumber"),
			CertificateURL:      f.File("communityCert"),
		},
		FamilyDetails: models.FamilyDetails{
			FatherOccupation: f.Get("fatherOccupation"),
			MotherOccupation: f.Get("motherOccupation"),
			AnnualIncome:     f.Get("annualIncome"),
			MemberCount:      f.Int("memberCount"),
			DependentCount:   f.Int("dependentCount"),
			RationCardType:   f.Get("rationCardTypeFamily"),
		},
		RationCard: models.RationCard{
			Number:     f.Get("rationCardNumber"),
			Type:       f.Get("rationCardType"),
			HolderName: f.Get("rationCardHolderName"),
			FileURL:    f.File("rationCardFile"),
		},
		VoterID: models.VoterID{
			EpicNumber:   f.Get("epicNumber"),
			NameOnCard:   f.Get("voterName"),
			PollingBooth: f.Get("pollingBooth"),
			FileURL:      f.File("voterIdFront"),
			BackFileURL:  f.File("voterIdBack"),
		},
		BankDetails: models.BankDetails{
			BankName:      f.Get("bankName"),
			BranchName:    f.Get("branchName"),
			AccountNumber: f.Get("accountNumber"),
			IFSCCode:      strings.ToUpper(f.Get("ifscCode")),
			HolderName:    f.Get("holderName"),
			PassbookURL:   f.File("bankPassbook"),
		},

		PhotoURL:           f.File("photo"),
		AadhaarCardURL:     f.File("aadhaarFront"),
		AadhaarCardBackURL: f.File("aadhaarBack"),
		RelationToHead:     models.RelationHead,
	}

	if f.Get("partnerName") != "" || f.Get("marriageCertNumber") != "" || f.File("marriageCert") != "" {
		m.PartnerDetails = &models.PartnerDetails{
			Name:               f.Get("partnerName"),
			Caste:              f.Get("partnerCaste"),
			SubCaste:           f.Get("partnerSubCaste"),
			IsInterCaste:       f.Get("isInterCaste") == "Yes",
			MarriageCertNumber: f.Get("marriageCertNumber"),
			CertificateURL:     f.File("marriageCert"),
			MarriageDate:       parseDate(f.Get("marriageDate")),
		}
	}
	return m
}

// flexInt decodes a JSON number or numeric string; the family JSON sends
// ages both ways.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}

// familyInput is one entry of the familyMembers JSON field.
type familyInput struct {
	Relation      string  `json:"relation"`
	MaritalStatus string  `json:"maritalStatus"`
	Surname       string  `json:"surname"`
	Name          string  `json:"name"`
	FatherName    string  `json:"fatherName"`
	DOB           string  `json:"dob"`
	Age           flexInt `json:"age"`
	Gender        string  `json:"gender"`
	Occupation    string  `json:"occupation"`
	MobileNumber  string  `json:"mobileNumber"`
	AadhaarNumber string  `json:"aadhaarNumber"`
	EpicNumber    string  `json:"epicNumber"`
	VoterName     string  `json:"voterName"`
	PollingBooth  string  `json:"pollingBooth"`

	Photo        string `json:"photo"`
	AadhaarFront string `json:"aadhaarFront"`
	AadhaarBack  string `json:"aadhaarBack"`
	VoterIDFront string `json:"voterIdFront"`
	VoterIDBack  string `json:"voterIdBack"`
}

// fileRef resolves an "INDEX:<n>" placeholder against the family file
// array field. Other values are kept as already-stored refs.
func fileRef(f *uploads.Form, field, v string) string {
	if idx := uploads.IndexRef(v); idx >= 0 {
		return f.FileAt(field, idx)
	}
	if v == "null" || v == "undefined" {
		return ""
	}
	return strings.TrimSpace(v)
}

// familyFromForm decodes the familyMembers field. Entries without a name
// are dropped. Parents default to married.
func familyFromForm(f *uploads.Form) ([]models.FamilyMember, error) {
	raw := f.Get("familyMembers")
	if raw == "" {
		return nil, nil
	}
	var in []familyInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, errBadFamily
	}
	out := make([]models.FamilyMember, 0, len(in))
	for _, fi := range in {
		if strings.TrimSpace(fi.Name) == "" {
			continue
		}
		marital := fi.MaritalStatus
		if marital == "" && (fi.Relation == "Father" || fi.Relation == "Mother") {
			marital = "Married"
		}
		out = append(out, models.FamilyMember{
			Relation:      fi.Relation,
			MaritalStatus: marital,
			Surname:       strings.TrimSpace(fi.Surname),
			Name:          strings.TrimSpace(fi.Name),
			FatherName:    fi.FatherName,
			DOB:           parseDate(fi.DOB),
			Age:           int(fi.Age),
			Gender:        fi.Gender,
			Occupation:    fi.Occupation,
			MobileNumber:  authutil.NormalizeMobile(fi.MobileNumber),
			AadhaarNumber: strings.TrimSpace(fi.AadhaarNumber),
			EpicNumber:    fi.EpicNumber,
			VoterName:     fi.VoterName,
			PollingBooth:  fi.PollingBooth,
			Photo:         fileRef(f, "familyMemberPhotos", fi.Photo),
			AadhaarFront:  fileRef(f, "familyMemberAadhaarFronts", fi.AadhaarFront),
			AadhaarBack:   fileRef(f, "familyMemberAadhaarBacks", fi.AadhaarBack),
			VoterIDFront:  fileRef(f, "familyMemberVoterIdFronts", fi.VoterIDFront),
			VoterIDBack:   fileRef(f, "familyMemberVoterIdBacks", fi.VoterIDBack),
		})
	}
	return out, nil
}

// dependentOf builds the Member document for one family entry. Shared
// household data is inherited from the head.
func dependentOf(head models.Member, fm models.FamilyMember) models.Member {
	surname := fm.Surname
	if surname == "" {
		surname = head.Surname
	}
	headID := head.ID
	return models.Member{
		Surname:       surname,
		Name:          fm.Name,
		FatherName:    fm.FatherName,
		DOB:           fm.DOB,
		Age:           fm.Age,
		Gender:        fm.Gender,
		Occupation:    fm.Occupation,
		MobileNumber:  fm.MobileNumber,
		AadhaarNumber: fm.AadhaarNumber,
		MaritalStatus: fm.MaritalStatus,

		Address:          head.Address,
		PermanentAddress: head.PermanentAddress,
		CasteDetails:     head.CasteDetails,
		FamilyDetails:    head.FamilyDetails,
		RationCard:       head.RationCard,
		VoterID: models.VoterID{
			EpicNumber:   fm.EpicNumber,
			NameOnCard:   fm.VoterName,
			PollingBooth: fm.PollingBooth,
			FileURL:      fm.VoterIDFront,
			BackFileURL:  fm.VoterIDBack,
		},

		PhotoURL:           fm.Photo,
		AadhaarCardURL:     fm.AadhaarFront,
		AadhaarCardBackURL: fm.AadhaarBack,

		VerificationStatus: head.VerificationStatus,
		HeadOfFamily:       &headID,
		RelationToHead:     fm.Relation,
	}
}

// updatable maps flat form fields to the document paths an update may set.
var updatable = []struct{ field, path string }{
	{"surname", "surname"},
	{"name", "name"},
	{"fatherName", "fatherName"},
	{"gender", "gender"},
	{"occupation", "occupation"},
	{"jobSector", "jobSector"},
	{"jobOrganization", "jobOrganization"},
	{"jobDesignation", "jobDesignation"},
	{"educationLevel", "educationLevel"},
	{"mobileNumber", "mobileNumber"},
	{"bloodGroup", "bloodGroup"},
	{"email", "email"},
	{"alternateMobile", "alternateMobile"},
	{"aadhaarNumber", "aadhaarNumber"},
	{"maritalStatus", "maritalStatus"},
	{"presentHouseNo", "address.houseNumber"},
	{"presentStreet", "address.street"},
	{"presentPincode", "address.pinCode"},
	{"presentLandmark", "address.landmark"},
	{"residenceType", "address.residencyType"},
	{"caste", "casteDetails.caste"},
	{"subCaste", "casteDetails.subCaste"},
	{"communityCertNumber", "casteDetails.communityCertNumber"},
	{"fatherOccupation", "familyDetails.fatherOccupation"},
	{"motherOccupation", "familyDetails.motherOccupation"},
	{"annualIncome", "familyDetails.annualIncome"},
	{"rationCardTypeFamily", "familyDetails.rationCardType"},
	{"rationCardNumber", "rationCard.number"},
	{"rationCardType", "rationCard.type"},
	{"rationCardHolderName", "rationCard.holderName"},
	{"epicNumber", "voterId.epicNumber"},
	{"voterName", "voterId.nameOnCard"},
	{"pollingBooth", "voterId.pollingBooth"},
	{"bankName", "bankDetails.bankName"},
	{"branchName", "bankDetails.branchName"},
	{"accountNumber", "bankDetails.accountNumber"},
	{"ifscCode", "bankDetails.ifscCode"},
	{"holderName", "bankDetails.holderName"},
	{"partnerName", "partnerDetails.name"},
	{"partnerCaste", "partnerDetails.caste"},
	{"partnerSubCaste", "partnerDetails.subCaste"},
	{"marriageCertNumber", "partnerDetails.marriageCertNumber"},
}

// updatableFiles maps single-file fields to their document paths.
var updatableFiles = []struct{ field, path string }{
	{"photo", "photoUrl"},
	{"aadhaarFront", "aadhaarCardUrl"},
	{"aadhaarBack", "aadhaarCardBackUrl"},
	{"communityCert", "casteDetails.certificateUrl"},
	{"marriageCert", "partnerDetails.certificateUrl"},
	{"rationCardFile", "rationCard.fileUrl"},
	{"voterIdFront", "voterId.fileUrl"},
	{"voterIdBack", "voterId.backFileUrl"},
	{"bankPassbook", "bankDetails.passbookUrl"},
}

// updateSet builds the $set for an update from the fields present in f.
// Absent fields are left alone; an explicitly empty value clears.
func updateSet(f *uploads.Form) bson.M {
	set := bson.M{}
	for _, u := range updatable {
		if _, ok := f.Values[u.field]; ok {
			set[u.path] = f.Get(u.field)
		}
	}
	if v, ok := set["email"].(string); ok {
		set["email"] = strings.ToLower(v)
	}
	if v, ok := set["bankDetails.ifscCode"].(string); ok {
		set["bankDetails.ifscCode"] = strings.ToUpper(v)
	}
	for _, field := range []string{"age", "memberCount", "dependentCount"} {
		if _, ok := f.Values[field]; !ok {
			continue
		}
		path := field
		if field != "age" {
			path = "familyDetails." + field
		}
		set[path] = f.Int(field)
	}
	if _, ok := f.Values["dob"]; ok {
		set["dob"] = parseDate(f.Get("dob"))
	}
	if _, ok := f.Values["isInterCaste"]; ok {
		set["partnerDetails.isInterCaste"] = f.Get("isInterCaste") == "Yes"
	}
	if _, ok := f.Values["marriageDate"]; ok {
		set["partnerDetails.marriageDate"] = parseDate(f.Get("marriageDate"))
	}
	for _, u := range updatableFiles {
		if ref := f.File(u.field); ref != "" {
			set[u.path] = ref
		}
	}
	return set
}
