package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/mewsorg/mews/internal/app/system/jsonutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const tokenKey = "token"

// Failure messages returned by RequireSignedIn.
const (
	MsgNoToken      = "Not authorized, no token"
	MsgTokenFailed  = "Not authorized, token failed"
	MsgUserNotFound = "Not authorized, user not found"
)

// Principal is whoever the request is acting as: an admin user, a member
// or an institution. It is resolved from the database on every request.
type Principal struct {
	ID               primitive.ObjectID  `json:"_id"`
	Kind             string              `json:"kind"`
	Name             string              `json:"name"`
	Username         string              `json:"username,omitempty"`
	Email            string              `json:"email,omitempty"`
	Mobile           string              `json:"mobileNumber,omitempty"`
	Role             string              `json:"role"`
	AssignedLocation *primitive.ObjectID `json:"assignedLocation,omitempty"`
	LocationName     string              `json:"locationName,omitempty"`
	LocationType     string              `json:"locationType,omitempty"`
	InstitutionID    *primitive.ObjectID `json:"institutionId,omitempty"`
	MemberID         *primitive.ObjectID `json:"memberId,omitempty"`
	TwoFactorEnabled bool                `json:"twoFactorEnabled"`
	MPINCreated      bool                `json:"mpinCreated,omitempty"`
}

// PrincipalFetcher loads a principal by id. It returns (nil, nil) when no
// active principal with that id exists.
type PrincipalFetcher interface {
	FetchPrincipal(ctx context.Context, id primitive.ObjectID, kind string) (*Principal, error)
}

// SessionManager issues tokens, keeps them in a signed cookie and turns
// incoming requests into principals.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	maxAge  time.Duration
	tokens  *TokenIssuer
	fetcher PrincipalFetcher
	log     *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager. An empty
// sessionKey gets a random one, which is fine for development but logs out
// everyone on restart.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, tokens *TokenIssuer, logger *zap.Logger) (*SessionManager, error) {
	if tokens == nil {
		return nil, errors.New("token issuer is nil")
	}
	key := []byte(sessionKey)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("could not generate session key")
		}
		logger.Warn("session key not set; using a random key")
	} else if len(key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
	}
	if name == "" {
		name = "jwt"
	}
	if maxAge <= 0 {
		maxAge = tokens.TTL()
	}

	store := sessions.NewCookieStore(key)
	store.MaxAge(int(maxAge.Seconds()))
	store.Options.Domain = domain
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	} else {
		store.Options.SameSite = http.SameSiteLaxMode
	}

	return &SessionManager{
		store:  store,
		name:   name,
		maxAge: maxAge,
		tokens: tokens,
		log:    logger,
	}, nil
}

// SetPrincipalFetcher wires the database lookup used by Middleware.
func (sm *SessionManager) SetPrincipalFetcher(f PrincipalFetcher) { sm.fetcher = f }

// Tokens exposes the issuer, for handlers that hand tokens back in JSON.
func (sm *SessionManager) Tokens() *TokenIssuer { return sm.tokens }

// Login issues a token for p, stores it in the session cookie and returns it.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, p *Principal) (string, error) {
	token, _, err := sm.tokens.Issue(p.ID, p.Kind)
	if err != nil {
		return "", err
	}
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[tokenKey] = token
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

// Logout expires the session cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Middleware resolves the request's token into a principal. Requests
// without a usable token continue anonymously; RequireSignedIn decides
// what to do with them.
func (sm *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := sm.resolve(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateKey, st)))
	})
}

func (sm *SessionManager) resolve(r *http.Request) *authState {
	raw := bearerToken(r)
	if raw == "" {
		sess, err := sm.store.Get(r, sm.name)
		if err == nil {
			raw, _ = sess.Values[tokenKey].(string)
		}
	}
	if raw == "" {
		return &authState{reason: MsgNoToken}
	}

	claims, err := sm.tokens.Parse(raw)
	if err != nil {
		return &authState{reason: MsgTokenFailed}
	}
	if sm.fetcher == nil {
		sm.log.Error("principal fetcher not configured")
		return &authState{reason: MsgUserNotFound}
	}
	id, _ := primitive.ObjectIDFromHex(claims.ID)
	p, err := sm.fetcher.FetchPrincipal(r.Context(), id, claims.Kind)
	if err != nil {
		sm.log.Warn("principal lookup failed", zap.String("id", claims.ID), zap.Error(err))
		return &authState{reason: MsgTokenFailed}
	}
	if p == nil {
		return &authState{reason: MsgUserNotFound}
	}
	return &authState{principal: p}
}

// RequireSignedIn rejects anonymous requests with 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentPrincipal(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		jsonutil.Error(w, r, http.StatusUnauthorized, failureReason(r))
	})
}

// RequireRole admits signed-in principals whose role is one of allowed.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToUpper(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(r)
			if !ok {
				jsonutil.Error(w, r, http.StatusUnauthorized, failureReason(r))
				return
			}
			if _, has := set[p.Role]; !has {
				jsonutil.Error(w, r, http.StatusForbidden,
					fmt.Sprintf("User role %s is not authorized to access this route", p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey string

const stateKey ctxKey = "authState"

type authState struct {
	principal *Principal
	reason    string
}

// CurrentPrincipal returns the signed-in principal, if any.
func CurrentPrincipal(r *http.Request) (*Principal, bool) {
	return FromContext(r.Context())
}

// FromContext is CurrentPrincipal for code that only has a context.
func FromContext(ctx context.Context) (*Principal, bool) {
	st, ok := ctx.Value(stateKey).(*authState)
	if !ok || st.principal == nil {
		return nil, false
	}
	return st.principal, true
}

// WithTestPrincipal injects p into the request context without a token.
func WithTestPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), stateKey, &authState{principal: p}))
}

func failureReason(r *http.Request) string {
	if st, ok := r.Context().Value(stateKey).(*authState); ok && st.reason != "" {
		return st.reason
	}
	return MsgNoToken
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
