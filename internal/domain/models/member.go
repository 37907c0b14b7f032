// internal/domain/models/member.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member verification states.
const (
	MemberPending         = "PENDING"
	MemberApprovedVillage = "APPROVED_VILLAGE"
	MemberApprovedMandal  = "APPROVED_MANDAL"
	MemberActive          = "ACTIVE"
	MemberRejected        = "REJECTED"
)

// MemberStatuses lists the valid verification states.
var MemberStatuses = []string{
	MemberPending,
	MemberApprovedVillage,
	MemberApprovedMandal,
	MemberActive,
	MemberRejected,
}

// RelationHead is the relationToHead value for the registering member.
const RelationHead = "Head"

// Address is a member's present or permanent address. Location refs point
// into the locations collection; the remaining fields are free text.
type Address struct {
	District      *primitive.ObjectID `bson:"district,omitempty" json:"district,omitempty"`
	Mandal        *primitive.ObjectID `bson:"mandal,omitempty" json:"mandal,omitempty"`
	Village       *primitive.ObjectID `bson:"village,omitempty" json:"village,omitempty"`
	Municipality  *primitive.ObjectID `bson:"municipality,omitempty" json:"municipality,omitempty"`
	Constituency  *primitive.ObjectID `bson:"constituency,omitempty" json:"constituency,omitempty"`
	WardNumber    string              `bson:"wardNumber,omitempty" json:"wardNumber,omitempty"`
	HouseNumber   string              `bson:"houseNumber,omitempty" json:"houseNumber,omitempty"`
	Street        string              `bson:"street,omitempty" json:"street,omitempty"`
	PinCode       string              `bson:"pinCode,omitempty" json:"pinCode,omitempty"`
	State         string              `bson:"state,omitempty" json:"state,omitempty"`
	ResidencyType string              `bson:"residencyType,omitempty" json:"residencyType,omitempty"`
	Landmark      string              `bson:"landmark,omitempty" json:"landmark,omitempty"`
}

type PoliticalDetails struct {
	Position string     `bson:"position,omitempty" json:"position,omitempty"`
	FromDate *time.Time `bson:"fromDate,omitempty" json:"fromDate,omitempty"`
	ToDate   *time.Time `bson:"toDate,omitempty" json:"toDate,omitempty"`
}

type CasteDetails struct {
	Caste               string `bson:"caste,omitempty" json:"caste,omitempty"`
	SubCaste            string `bson:"subCaste,omitempty" json:"subCaste,omitempty"`
	CommunityCertNumber string `bson:"communityCertNumber,omitempty" json:"communityCertNumber,omitempty"`
	CertificateURL      string `bson:"certificateUrl,omitempty" json:"certificateUrl,omitempty"`
}

type PartnerDetails struct {
	Name               string     `bson:"name,omitempty" json:"name,omitempty"`
	Caste              string     `bson:"caste,omitempty" json:"caste,omitempty"`
	SubCaste           string     `bson:"subCaste,omitempty" json:"subCaste,omitempty"`
	IsInterCaste       bool       `bson:"isInterCaste,omitempty" json:"isInterCaste,omitempty"`
	MarriageCertNumber string     `bson:"marriageCertNumber,omitempty" json:"marriageCertNumber,omitempty"`
	CertificateURL     string     `bson:"certificateUrl,omitempty" json:"certificateUrl,omitempty"`
	MarriageDate       *time.Time `bson:"marriageDate,omitempty" json:"marriageDate,omitempty"`
}

type FamilyDetails struct {
	FatherOccupation string `bson:"fatherOccupation,omitempty" json:"fatherOccupation,omitempty"`
	MotherOccupation string `bson:"motherOccupation,omitempty" json:"motherOccupation,omitempty"`
	AnnualIncome     string `bson:"annualIncome,omitempty" json:"annualIncome,omitempty"`
	MemberCount      int    `bson:"memberCount,omitempty" json:"memberCount,omitempty"`
	DependentCount   int    `bson:"dependentCount,omitempty" json:"dependentCount,omitempty"`
	RationCardType   string `bson:"rationCardType,omitempty" json:"rationCardType,omitempty"`
}

type RationCard struct {
	Number     string `bson:"number" json:"number"`
	Type       string `bson:"type" json:"type"`
	HolderName string `bson:"holderName" json:"holderName"`
	FileURL    string `bson:"fileUrl" json:"fileUrl"`
}

type VoterID struct {
	EpicNumber   string `bson:"epicNumber" json:"epicNumber"`
	NameOnCard   string `bson:"nameOnCard" json:"nameOnCard"`
	PollingBooth string `bson:"pollingBooth" json:"pollingBooth"`
	FileURL      string `bson:"fileUrl" json:"fileUrl"`
	BackFileURL  string `bson:"backFileUrl" json:"backFileUrl"`
}

type BankDetails struct {
	BankName      string `bson:"bankName" json:"bankName"`
	BranchName    string `bson:"branchName" json:"branchName"`
	AccountNumber string `bson:"accountNumber" json:"accountNumber"`
	IFSCCode      string `bson:"ifscCode" json:"ifscCode"`
	HolderName    string `bson:"holderName" json:"holderName"`
	PassbookURL   string `bson:"passbookUrl" json:"passbookUrl"`
}

// FamilyMember is the registration-time snapshot of a dependent. Each entry
// is also materialized as its own Member document linked via HeadOfFamily.
type FamilyMember struct {
	Relation         string     `bson:"relation,omitempty" json:"relation,omitempty"`
	MaritalStatus    string     `bson:"maritalStatus,omitempty" json:"maritalStatus,omitempty"`
	Surname          string     `bson:"surname,omitempty" json:"surname,omitempty"`
	Name             string     `bson:"name,omitempty" json:"name,omitempty"`
	FatherName       string     `bson:"fatherName,omitempty" json:"fatherName,omitempty"`
	DOB              *time.Time `bson:"dob,omitempty" json:"dob,omitempty"`
	Age              int        `bson:"age,omitempty" json:"age,omitempty"`
	Gender           string     `bson:"gender,omitempty" json:"gender,omitempty"`
	Occupation       string     `bson:"occupation,omitempty" json:"occupation,omitempty"`
	MobileNumber     string     `bson:"mobileNumber,omitempty" json:"mobileNumber,omitempty"`
	AadhaarNumber    string     `bson:"aadhaarNumber,omitempty" json:"aadhaarNumber,omitempty"`
	MewsID           string     `bson:"mewsId,omitempty" json:"mewsId,omitempty"`
	AnnualIncome     string     `bson:"annualIncome,omitempty" json:"annualIncome,omitempty"`
	MemberCount      int        `bson:"memberCount,omitempty" json:"memberCount,omitempty"`
	DependentCount   int        `bson:"dependentCount,omitempty" json:"dependentCount,omitempty"`
	RationCardNumber string     `bson:"rationCardNumber,omitempty" json:"rationCardNumber,omitempty"`
	EpicNumber       string     `bson:"epicNumber,omitempty" json:"epicNumber,omitempty"`
	VoterName        string     `bson:"voterName,omitempty" json:"voterName,omitempty"`
	PollingBooth     string     `bson:"pollingBooth,omitempty" json:"pollingBooth,omitempty"`

	Photo        string `bson:"photo,omitempty" json:"photo,omitempty"`
	AadhaarFront string `bson:"aadhaarFront,omitempty" json:"aadhaarFront,omitempty"`
	AadhaarBack  string `bson:"aadhaarBack,omitempty" json:"aadhaarBack,omitempty"`
	VoterIDFront string `bson:"voterIdFront,omitempty" json:"voterIdFront,omitempty"`
	VoterIDBack  string `bson:"voterIdBack,omitempty" json:"voterIdBack,omitempty"`

	PresentAddress   *Address `bson:"presentAddress,omitempty" json:"presentAddress,omitempty"`
	PermanentAddress *Address `bson:"permanentAddress,omitempty" json:"permanentAddress,omitempty"`
}

// Member is a registered community member (or a dependent of one).
type Member struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"_id"`

	Surname          string            `bson:"surname" json:"surname"`
	Name             string            `bson:"name" json:"name"`
	NameCI           string            `bson:"name_ci" json:"-"`
	FatherName       string            `bson:"fatherName,omitempty" json:"fatherName,omitempty"`
	DOB              *time.Time        `bson:"dob,omitempty" json:"dob,omitempty"`
	Age              int               `bson:"age,omitempty" json:"age,omitempty"`
	Gender           string            `bson:"gender,omitempty" json:"gender,omitempty"`
	Occupation       string            `bson:"occupation,omitempty" json:"occupation,omitempty"`
	PoliticalDetails *PoliticalDetails `bson:"politicalDetails,omitempty" json:"politicalDetails,omitempty"`
	BusinessType     string            `bson:"businessType,omitempty" json:"businessType,omitempty"`
	JobSector        string            `bson:"jobSector,omitempty" json:"jobSector,omitempty"`
	JobOrganization  string            `bson:"jobOrganization,omitempty" json:"jobOrganization,omitempty"`
	JobDesignation   string            `bson:"jobDesignation,omitempty" json:"jobDesignation,omitempty"`
	EducationLevel   string            `bson:"educationLevel,omitempty" json:"educationLevel,omitempty"`
	MobileNumber     string            `bson:"mobileNumber,omitempty" json:"mobileNumber,omitempty"`
	BloodGroup       string            `bson:"bloodGroup,omitempty" json:"bloodGroup,omitempty"`
	Email            string            `bson:"email,omitempty" json:"email,omitempty"`
	AlternateMobile  string            `bson:"alternateMobile,omitempty" json:"alternateMobile,omitempty"`
	AadhaarNumber    string            `bson:"aadhaarNumber,omitempty" json:"aadhaarNumber,omitempty"`

	Address          Address  `bson:"address" json:"address"`
	PermanentAddress *Address `bson:"permanentAddress,omitempty" json:"permanentAddress,omitempty"`

	CasteDetails   CasteDetails    `bson:"casteDetails" json:"casteDetails"`
	MaritalStatus  string          `bson:"maritalStatus,omitempty" json:"maritalStatus,omitempty"`
	PartnerDetails *PartnerDetails `bson:"partnerDetails,omitempty" json:"partnerDetails,omitempty"`
	FamilyDetails  FamilyDetails   `bson:"familyDetails" json:"familyDetails"`
	RationCard     RationCard      `bson:"rationCard" json:"rationCard"`
	VoterID        VoterID         `bson:"voterId" json:"voterId"`
	BankDetails    BankDetails     `bson:"bankDetails" json:"bankDetails"`

	PhotoURL           string `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	AadhaarCardURL     string `bson:"aadhaarCardUrl,omitempty" json:"aadhaarCardUrl,omitempty"`
	AadhaarCardBackURL string `bson:"aadhaarCardBackUrl,omitempty" json:"aadhaarCardBackUrl,omitempty"`

	MewsID             string              `bson:"mewsId,omitempty" json:"mewsId,omitempty"`
	VerificationStatus string              `bson:"verificationStatus" json:"verificationStatus"`
	ApprovedBy         *primitive.ObjectID `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	AdminNotes         string              `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`

	HeadOfFamily   *primitive.ObjectID `bson:"headOfFamily,omitempty" json:"headOfFamily,omitempty"`
	RelationToHead string              `bson:"relationToHead" json:"relationToHead"`
	FamilyMembers  []FamilyMember      `bson:"familyMembers,omitempty" json:"familyMembers,omitempty"`

	// Login credentials. Never serialized.
	OTPHash            string     `bson:"otpHash,omitempty" json:"-"`
	OTPExpires         *time.Time `bson:"otpExpires,omitempty" json:"-"`
	OTPLastSent        *time.Time `bson:"otpLastSent,omitempty" json:"-"`
	IsPhoneVerified    bool       `bson:"isPhoneVerified" json:"isPhoneVerified"`
	MPINHash           string     `bson:"mpinHash,omitempty" json:"-"`
	MPINCreated        bool       `bson:"mpinCreated" json:"mpinCreated"`
	MPINLockedUntil    *time.Time `bson:"mpinLockedUntil,omitempty" json:"-"`
	MPINFailedAttempts int        `bson:"mpinFailedAttempts" json:"-"`
	IsMPINEnabled      bool       `bson:"isMpinEnabled" json:"isMpinEnabled"`
	DeviceID           string     `bson:"deviceId,omitempty" json:"-"`

	Role             string              `bson:"role" json:"role"`
	AssignedLocation *primitive.ObjectID `bson:"assignedLocation,omitempty" json:"assignedLocation,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// FullName joins the member's name and surname.
func (m Member) FullName() string {
	if m.Surname == "" {
		return m.Name
	}
	return m.Name + " " + m.Surname
}

// IsHead reports whether the member heads their own family.
func (m Member) IsHead() bool {
	return m.HeadOfFamily == nil
}

// UnemployedOccupations are the lowercased occupation values counted as not
// employed. An empty occupation counts as well.
var UnemployedOccupations = []string{
	"student", "house wife", "housewife", "homemaker",
	"unemployed", "retired", "child", "nil", "none", "",
}

// FileRefs returns pointers to every stored file reference on m, including
// the partner certificate and family member documents. Empty refs are
// included.
func (m *Member) FileRefs() []*string {
	refs := []*string{
		&m.PhotoURL, &m.AadhaarCardURL, &m.AadhaarCardBackURL,
		&m.CasteDetails.CertificateURL,
		&m.RationCard.FileURL,
		&m.VoterID.FileURL, &m.VoterID.BackFileURL,
		&m.BankDetails.PassbookURL,
	}
	if m.PartnerDetails != nil {
		refs = append(refs, &m.PartnerDetails.CertificateURL)
	}
	for i := range m.FamilyMembers {
		fm := &m.FamilyMembers[i]
		refs = append(refs, &fm.Photo, &fm.AadhaarFront, &fm.AadhaarBack, &fm.VoterIDFront, &fm.VoterIDBack)
	}
	return refs
}
