// internal/domain/models/donation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DonationCampaign      = "CAMPAIGN"
	DonationCommunityPool = "COMMUNITY_POOL"

	DonationInitiated = "INITIATED"
	DonationSuccess   = "SUCCESS"
	DonationFailed    = "FAILED"
)

// PaymentMethods lists accepted payment methods.
var PaymentMethods = []string{"UPI", "CARD", "NET_BANKING", "OFFLINE"}

// Donation is a single contribution, either to a specific fund request
// (CAMPAIGN) or to the general pool.
type Donation struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Donor         *primitive.ObjectID `bson:"donor" json:"donor"`
	DonorName     string              `bson:"donorName,omitempty" json:"donorName,omitempty"`
	FundRequest   *primitive.ObjectID `bson:"fundRequest,omitempty" json:"fundRequest,omitempty"`
	Type          string              `bson:"type" json:"type"`
	Amount        float64             `bson:"amount" json:"amount"`
	Currency      string              `bson:"currency" json:"currency"`
	TransactionID string              `bson:"transactionId" json:"transactionId"`
	PaymentMethod string              `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Status        string              `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
