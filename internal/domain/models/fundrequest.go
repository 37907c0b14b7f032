// internal/domain/models/fundrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fund request purposes.
const (
	PurposeMedical   = "Medical"
	PurposeEducation = "Education"
	PurposeEmergency = "Emergency"
	PurposeLegal     = "Legal"
	PurposeCommunity = "Community"
)

// FundPurposes lists the valid purposes.
var FundPurposes = []string{PurposeMedical, PurposeEducation, PurposeEmergency, PurposeLegal, PurposeCommunity}

// Fund request workflow states.
const (
	FundDraft           = "DRAFT"
	FundSubmitted       = "SUBMITTED"
	FundPendingApproval = "PENDING_APPROVAL"
	FundActive          = "ACTIVE"
	FundCompleted       = "COMPLETED"
	FundRejected        = "REJECTED"
	FundFrozen          = "FROZEN"
)

// FundBankDetails is where collected funds are disbursed.
type FundBankDetails struct {
	AccountNumber string `bson:"accountNumber,omitempty" json:"accountNumber,omitempty"`
	BankName      string `bson:"bankName,omitempty" json:"bankName,omitempty"`
	IFSCCode      string `bson:"ifscCode,omitempty" json:"ifscCode,omitempty"`
	BranchName    string `bson:"branchName,omitempty" json:"branchName,omitempty"`
}

// ApprovalEntry records one review step.
type ApprovalEntry struct {
	Level    string             `bson:"level" json:"level"`
	Status   string             `bson:"status" json:"status"`
	ActionBy primitive.ObjectID `bson:"actionBy" json:"actionBy"`
	Date     time.Time          `bson:"date" json:"date"`
	Notes    string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// FundRequest is a member's (or community's) application for assistance.
type FundRequest struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Purpose             string              `bson:"purpose" json:"purpose"`
	AmountRequired      float64             `bson:"amountRequired" json:"amountRequired"`
	AmountCollected     float64             `bson:"amountCollected" json:"amountCollected"`
	EventDate           *time.Time          `bson:"eventDate,omitempty" json:"eventDate,omitempty"`
	Description         string              `bson:"description" json:"description"`
	CourseName          string              `bson:"courseName,omitempty" json:"courseName,omitempty"`
	Beneficiary         *primitive.ObjectID `bson:"beneficiary,omitempty" json:"beneficiary,omitempty"`
	RequestedBy         primitive.ObjectID  `bson:"requestedBy" json:"requestedBy"`
	LocationScope       *primitive.ObjectID `bson:"locationScope,omitempty" json:"locationScope,omitempty"`
	BankDetails         FundBankDetails     `bson:"bankDetails" json:"bankDetails"`
	SupportingDocuments []string            `bson:"supportingDocuments" json:"supportingDocuments"`
	Status              string              `bson:"status" json:"status"`
	ApprovalLevel       string              `bson:"approvalLevel" json:"approvalLevel"`
	ApprovalHistory     []ApprovalEntry     `bson:"approvalHistory" json:"approvalHistory"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
