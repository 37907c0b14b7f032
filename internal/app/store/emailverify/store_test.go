package emailverify

import (
	"errors"
	"testing"
	"time"

	"github.com/mewsorg/mews/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	clock := time.Now().UTC()
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestNew_DefaultExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	if got := New(db, -time.Minute).Expiry(); got != DefaultExpiry {
		t.Errorf("expiry: got %v, want %v", got, DefaultExpiry)
	}
}

func TestSendAndVerify(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	code, err := s.Send(ctx, "  Ravi@Example.com ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(code) != CodeLength {
		t.Fatalf("code length: %q", code)
	}

	ok, err := s.Check(ctx, "ravi@example.com")
	if err != nil || ok {
		t.Fatalf("Check before verify: %v %v", ok, err)
	}
	if err := s.Verify(ctx, "ravi@example.com", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	ok, err = s.Check(ctx, "RAVI@example.com")
	if err != nil || !ok {
		t.Errorf("Check after verify: %v %v", ok, err)
	}
	if err := s.Verify(ctx, "ravi@example.com", code); !errors.Is(err, ErrNotFound) {
		t.Errorf("verify twice: %v", err)
	}
}

func TestVerify_Attempts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	code, err := s.Send(ctx, "a@b.co")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}
	for want := MaxVerifyAttempts - 1; want >= 0; want-- {
		var inv *InvalidCodeError
		if err := s.Verify(ctx, "a@b.co", wrong); !errors.As(err, &inv) || inv.Remaining != want {
			t.Fatalf("wrong code: %v, want %d remaining", err, want)
		}
	}
	if err := s.Verify(ctx, "a@b.co", code); !errors.Is(err, ErrTooManyAttempts) {
		t.Errorf("after max attempts: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	s, clock := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	code, err := s.Send(ctx, "a@b.co")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	*clock = clock.Add(DefaultExpiry + time.Second)
	if err := s.Verify(ctx, "a@b.co", code); !errors.Is(err, ErrExpired) {
		t.Errorf("got %v, want ErrExpired", err)
	}
}

func TestSend_CooldownAndWindow(t *testing.T) {
	s, clock := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := s.Send(ctx, "a@b.co"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var cd *CooldownError
	if _, err := s.Send(ctx, "a@b.co"); !errors.As(err, &cd) || cd.Seconds() != 60 {
		t.Fatalf("immediate resend: %v", err)
	}

	for i := 1; i < MaxSends; i++ {
		*clock = clock.Add(ResendCooldown)
		if _, err := s.Send(ctx, "a@b.co"); err != nil {
			t.Fatalf("send %d: %v", i+1, err)
		}
	}
	*clock = clock.Add(ResendCooldown)
	if _, err := s.Send(ctx, "a@b.co"); !errors.Is(err, ErrTooManySends) {
		t.Errorf("over the window: %v", err)
	}

	*clock = clock.Add(SendWindow)
	if _, err := s.Send(ctx, "a@b.co"); err != nil {
		t.Errorf("new window: %v", err)
	}

	n, err := s.c.CountDocuments(ctx, bson.M{"email": "a@b.co"})
	if err != nil || n != 1 {
		t.Errorf("records per address: %d %v", n, err)
	}
}
