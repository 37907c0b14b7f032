// internal/app/store/emailverify/store.go
package emailverify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long a verification code is valid.
	DefaultExpiry = 5 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is how many wrong codes a verification tolerates.
	MaxVerifyAttempts = 3
	// MaxSends is how many codes one address may request per SendWindow.
	MaxSends = 3
	// SendWindow is the rate limit window for sends.
	SendWindow = 5 * time.Minute
	// ResendCooldown is the minimum gap between two sends to one address.
	ResendCooldown = 60 * time.Second
	// retention keeps verified records around long enough for Check.
	retention = 10 * time.Minute
)

var (
	// ErrNotFound is returned when no pending verification exists for the address.
	ErrNotFound = errors.New("no verification request found")
	// ErrExpired is returned when the pending code has expired.
	ErrExpired = errors.New("verification code has expired")
	// ErrTooManyAttempts is returned once MaxVerifyAttempts wrong codes were tried.
	ErrTooManyAttempts = errors.New("maximum verification attempts exceeded")
	// ErrTooManySends is returned when the address exhausted its send window.
	ErrTooManySends = errors.New("too many verification requests")
)

// CooldownError is returned when a resend comes too soon after the last send.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.Seconds())
}

// Seconds rounds the remaining wait up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// InvalidCodeError is returned for a wrong code that still has attempts left.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempt(s) remaining", e.Remaining)
}

// Verification is the single per-address record.
type Verification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Email       string             `bson:"email"`
	CodeHash    string             `bson:"codeHash"`
	ExpiresAt   time.Time          `bson:"expiresAt"`
	Attempts    int                `bson:"attempts"`
	Verified    bool               `bson:"verified"`
	SendCount   int                `bson:"sendCount"`
	WindowStart time.Time          `bson:"windowStart"`
	LastSentAt  time.Time          `bson:"lastSentAt"`
	PurgeAt     time.Time          `bson:"purgeAt"` // TTL index field
	CreatedAt   time.Time          `bson:"createdAt"`
}

// Store manages email verification records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
	now    func() time.Time
}

// New creates a Store. A zero or negative expiry means DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("emailverifications"),
		expiry: expiry,
		now:    time.Now,
	}
}

// Expiry returns the lifetime of a code.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// EnsureIndexes creates the lookup index and the TTL index for cleanup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "purgeAt", Value: 1}},
			Options: options.Index().SetName("idx_emailverify_purge_ttl").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_emailverify_email").SetUnique(true),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Normalize lowercases and trims an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Send issues a fresh code for email and returns it in plain text so the
// caller can mail it. Any earlier pending code is replaced.
func (s *Store) Send(ctx context.Context, email string) (string, error) {
	email = Normalize(email)
	now := s.now().UTC()

	var existing Verification
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	found := err == nil
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return "", err
	}

	sendCount := 1
	windowStart := now
	if found {
		if wait := existing.LastSentAt.Add(ResendCooldown).Sub(now); wait > 0 {
			return "", &CooldownError{Remaining: wait}
		}
		if now.Before(existing.WindowStart.Add(SendWindow)) {
			if existing.SendCount >= MaxSends {
				return "", ErrTooManySends
			}
			windowStart = existing.WindowStart
			sendCount = existing.SendCount + 1
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	expires := now.Add(s.expiry)
	_, err = s.c.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$set": bson.M{
				"codeHash":    string(hash),
				"expiresAt":   expires,
				"attempts":    0,
				"verified":    false,
				"sendCount":   sendCount,
				"windowStart": windowStart,
				"lastSentAt":  now,
				"purgeAt":     expires.Add(retention),
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("save verification: %w", err)
	}
	return code, nil
}

// Verify checks code against the pending verification for email and marks
// it verified on success.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	email = Normalize(email)
	var v Verification
	err := s.c.FindOne(ctx, bson.M{"email": email, "verified": false}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	if s.now().After(v.ExpiresAt) {
		return ErrExpired
	}
	if v.Attempts >= MaxVerifyAttempts {
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(code)) != nil {
		_, _ = s.c.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$inc": bson.M{"attempts": 1}})
		return &InvalidCodeError{Remaining: MaxVerifyAttempts - v.Attempts - 1}
	}

	_, err = s.c.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$set": bson.M{"verified": true}})
	return err
}

// Check reports whether email holds a verified, unexpired record.
func (s *Store) Check(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"email":     Normalize(email),
		"verified":  true,
		"expiresAt": bson.M{"$gt": s.now().UTC()},
	})
	return n > 0, err
}

// Delete removes the record for email.
func (s *Store) Delete(ctx context.Context, email string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"email": Normalize(email)})
	return err
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
