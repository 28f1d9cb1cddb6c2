// Package auth implements credential checks, token issuance and rotation,
// and per-request session resolution for the job board.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/queue"
	"github.com/iliyamo/jobboard-auth/internal/ratelimit"
	"github.com/iliyamo/jobboard-auth/internal/repository"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

// UserStore is the credential store.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	UpdateAccount(ctx context.Context, id uint64, p model.AccountPatch) (model.User, error)
}

// RefreshStore persists refresh tokens. Rotate must revoke oldHash and
// insert next atomically, failing with repository.ErrTokenNotActive unless
// exactly one active row was revoked.
type RefreshStore interface {
	Store(ctx context.Context, rec model.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next model.RefreshToken) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Publisher ships audit events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Client describes the caller of an operation for device tracking and the
// audit log.
type Client struct {
	IP        string
	UserAgent string
}

// Credentials is a password sign-in attempt.
type Credentials struct {
	Email    string
	Password string
}

// Registration is a self-service sign-up.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

// OAuthIdentity is what an OpenID Connect provider vouched for.
type OAuthIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

// Result is a freshly authenticated user with both tokens.
type Result struct {
	User    model.User
	Access  SignedToken
	Refresh SignedToken
}

// Deps wires a Service.
type Deps struct {
	Users      UserStore
	Tokens     RefreshStore
	Issuer     *Issuer
	Limiter    ratelimit.Limiter
	Events     Publisher
	Logger     *zap.Logger
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	users      UserStore
	tokens     RefreshStore
	issuer     *Issuer
	limiter    ratelimit.Limiter
	events     Publisher
	log        *zap.Logger
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(d Deps) *Service {
	s := &Service{
		users:      d.Users,
		tokens:     d.Tokens,
		issuer:     d.Issuer,
		limiter:    d.Limiter,
		events:     d.Events,
		log:        d.Logger,
		bcryptCost: d.BcryptCost,
		now:        d.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Issuer exposes the token issuer for cookie sizing.
func (s *Service) Issuer() *Issuer { return s.issuer }

// SignIn checks the per-email limiter and then the password. Unknown,
// inactive and OAuth-only accounts fail exactly like a wrong password.
func (s *Service) SignIn(ctx context.Context, cred Credentials, client Client) (Result, error) {
	email := repository.NormalizeEmail(cred.Email)
	if email == "" || cred.Password == "" {
		return Result{}, invalid("email and password are required")
	}
	if err := s.checkSignInLimit(ctx, email, client); err != nil {
		return Result{}, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return Result{}, fmt.Errorf("load user: %w", err)
	}
	if err != nil || !u.HasPassword() {
		s.burnPasswordCheck(cred.Password)
		return Result{}, s.signInFailed(ctx, email, nil, "unknown account or no password", client)
	}
	if !utils.VerifyPassword(*u.PasswordHash, cred.Password) {
		return Result{}, s.signInFailed(ctx, email, &u.ID, "bad password", client)
	}
	if !u.IsActive {
		return Result{}, s.signInFailed(ctx, email, &u.ID, "inactive account", client)
	}

	res, err := s.issue(ctx, u, client)
	if err != nil {
		return Result{}, err
	}
	s.touchLogin(ctx, &res.User)
	s.publish(ctx, queue.EventSignIn, &u.ID, u.Email, "", client)
	return res, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked and its successor inserted atomically, so a token can be used at
// most once even under concurrent requests.
func (s *Service) Refresh(ctx context.Context, raw string, client Client) (Result, error) {
	if raw == "" {
		return Result{}, ErrNoToken
	}
	claims, err := s.issuer.VerifyRefreshToken(raw)
	if err != nil {
		return Result{}, s.refreshRejected(ctx, nil, "verification failed", client)
	}
	uid, _ := claims.UserID()

	hash := utils.HashToken(raw)
	row, err := s.tokens.GetByHash(ctx, hash)
	switch {
	case errors.Is(err, repository.ErrTokenNotFound):
		return Result{}, s.refreshRejected(ctx, &uid, "unknown token", client)
	case err != nil:
		return Result{}, fmt.Errorf("load refresh token: %w", err)
	}
	if row.UserID != uid {
		return Result{}, s.refreshRejected(ctx, &uid, "subject mismatch", client)
	}
	if state := row.State(s.now()); state != model.TokenIssued {
		return Result{}, s.refreshRejected(ctx, &uid, "token "+strings.ToLower(string(state)), client)
	}

	// Re-read the user so role and activation changes apply now.
	u, err := s.users.GetByID(ctx, uid)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		s.log.Error("refresh token owner vanished", zap.Uint64("user_id", uid))
		return Result{}, ErrUserVanished
	case err != nil:
		return Result{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return Result{}, s.refreshRejected(ctx, &uid, "inactive account", client)
	}

	access, err := s.issuer.CreateAccessToken(identityOf(u))
	if err != nil {
		return Result{}, err
	}
	device := deviceInfo(client)
	if device == "" {
		device = row.DeviceInfo
	}
	next, rec, err := s.issuer.MintRefreshToken(u.ID, device)
	if err != nil {
		return Result{}, err
	}
	if err := s.tokens.Rotate(ctx, hash, rec); err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) {
			s.log.Warn("refresh token reused or rotated concurrently", zap.Uint64("user_id", uid))
			return Result{}, s.refreshRejected(ctx, &uid, "lost rotation", client)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrTokenPersist, err)
	}

	s.publish(ctx, queue.EventRefreshed, &u.ID, u.Email, "", client)
	return Result{User: u, Access: access, Refresh: next}, nil
}

// Logout revokes the refresh token if one is given. It never fails on a
// missing, unknown or already revoked token.
func (s *Service) Logout(ctx context.Context, raw string, client Client) error {
	if raw == "" {
		return nil
	}
	var uid *uint64
	if c, err := s.issuer.VerifyRefreshToken(raw); err == nil {
		if id, err := c.UserID(); err == nil {
			uid = &id
		}
	}
	if err := s.tokens.Revoke(ctx, utils.HashToken(raw)); err != nil {
		return err
	}
	s.publish(ctx, queue.EventSignOut, uid, "", "", client)
	return nil
}

// SignOutEverywhere revokes every refresh token of the session's user.
func (s *Service) SignOutEverywhere(ctx context.Context, sess *Session, client Client) error {
	if sess == nil {
		return ErrInvalidToken
	}
	if err := s.tokens.RevokeAllForUser(ctx, sess.User.ID); err != nil {
		return err
	}
	s.publish(ctx, queue.EventSignOutAll, &sess.User.ID, sess.User.Email, "", client)
	return nil
}

// Register creates a USER or EMPLOYER account and signs it in.
func (s *Service) Register(ctx context.Context, r Registration, client Client) (Result, error) {
	email := repository.NormalizeEmail(r.Email)
	if email == "" {
		return Result{}, invalid("email is required")
	}
	if err := utils.ValidatePasswordStrength(r.Password); err != nil {
		return Result{}, invalid("%s", err.Error())
	}
	role := model.RoleUser
	if strings.TrimSpace(r.Role) != "" {
		parsed, err := model.ParseRole(r.Role)
		if err != nil || parsed == model.RoleAdmin {
			return Result{}, invalid("role must be USER or EMPLOYER")
		}
		role = parsed
	}

	hash, err := utils.HashPassword(r.Password, s.bcryptCost)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    strings.TrimSpace(r.FirstName),
		LastName:     strings.TrimSpace(r.LastName),
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Result{}, ErrEmailTaken
		}
		return Result{}, fmt.Errorf("create user: %w", err)
	}

	res, err := s.issue(ctx, u, client)
	if err != nil {
		return Result{}, err
	}
	s.touchLogin(ctx, &res.User)
	s.publish(ctx, queue.EventSignUp, &u.ID, u.Email, string(role), client)
	return res, nil
}

// SignInOAuth signs in the account matching a provider-verified email,
// creating a password-less account on first use.
func (s *Service) SignInOAuth(ctx context.Context, id OAuthIdentity, client Client) (Result, error) {
	email := repository.NormalizeEmail(id.Email)
	if email == "" || !id.EmailVerified {
		return Result{}, s.signInFailed(ctx, email, nil, "oauth email missing or unverified", client)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		u = model.User{
			Email:           email,
			FirstName:       id.FirstName,
			LastName:        id.LastName,
			Role:            model.RoleUser,
			IsActive:        true,
			IsEmailVerified: true,
		}
		err = s.users.Create(ctx, &u)
		if errors.Is(err, repository.ErrEmailExists) {
			u, err = s.users.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("oauth account: %w", err)
	}
	if !u.IsActive {
		return Result{}, s.signInFailed(ctx, email, &u.ID, "inactive account", client)
	}

	res, err := s.issue(ctx, u, client)
	if err != nil {
		return Result{}, err
	}
	s.touchLogin(ctx, &res.User)
	s.publish(ctx, queue.EventOAuthSignIn, &u.ID, u.Email, id.Provider, client)
	return res, nil
}

// UpdateAccount applies an admin change to another account. Deactivation
// also revokes every refresh token of the target.
func (s *Service) UpdateAccount(ctx context.Context, actor *Session, userID uint64, p model.AccountPatch, client Client) (model.User, error) {
	if actor == nil {
		return model.User{}, ErrInvalidToken
	}
	if actor.User.Role != model.RoleAdmin {
		return model.User{}, ErrForbidden
	}
	if p.Empty() {
		return model.User{}, invalid("nothing to update")
	}
	if actor.User.ID == userID {
		if (p.IsActive != nil && !*p.IsActive) || (p.Role != nil && *p.Role != model.RoleAdmin) {
			return model.User{}, invalid("admins cannot deactivate or demote themselves")
		}
	}

	u, err := s.users.UpdateAccount(ctx, userID, p)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update account: %w", err)
	}
	if p.IsActive != nil && !*p.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return model.User{}, fmt.Errorf("revoke tokens of deactivated user: %w", err)
		}
	}

	detail := fmt.Sprintf("by=%d role=%s active=%t", actor.User.ID, u.Role, u.IsActive)
	s.publish(ctx, queue.EventAccountUpdated, &u.ID, u.Email, detail, client)
	return u, nil
}

func (s *Service) issue(ctx context.Context, u model.User, client Client) (Result, error) {
	access, err := s.issuer.CreateAccessToken(identityOf(u))
	if err != nil {
		return Result{}, err
	}
	refresh, err := s.issuer.CreateRefreshToken(ctx, u.ID, deviceInfo(client))
	if err != nil {
		return Result{}, err
	}
	return Result{User: u, Access: access, Refresh: refresh}, nil
}

func (s *Service) checkSignInLimit(ctx context.Context, email string, client Client) error {
	if s.limiter == nil {
		return nil
	}
	d, err := s.limiter.Allow(ctx, email)
	if err != nil {
		// fail open: a limiter outage must not lock everyone out
		s.log.Warn("sign-in limiter unavailable", zap.Error(err))
		return nil
	}
	if d.Allowed {
		return nil
	}
	s.log.Info("sign-in rate limited", zap.String("email", email), zap.Duration("retry_after", d.RetryAfter))
	s.publish(ctx, queue.EventSignInRateLimited, nil, email, "", client)
	return &RateLimitError{RetryAfter: d.RetryAfter}
}

func (s *Service) signInFailed(ctx context.Context, email string, uid *uint64, reason string, client Client) error {
	s.log.Info("sign-in rejected", zap.String("email", email), zap.String("reason", reason))
	s.publish(ctx, queue.EventSignInFailed, uid, email, reason, client)
	return ErrInvalidCredentials
}

func (s *Service) refreshRejected(ctx context.Context, uid *uint64, reason string, client Client) error {
	s.log.Info("refresh rejected", zap.String("reason", reason))
	s.publish(ctx, queue.EventRefreshRejected, uid, "", reason, client)
	return ErrInvalidToken
}

func (s *Service) touchLogin(ctx context.Context, u *model.User) {
	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, at); err != nil {
		s.log.Warn("stamp last login failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return
	}
	u.LastLoginAt = &at
}

// burnPasswordCheck spends one bcrypt comparison so a missing account takes
// as long to reject as a wrong password.
func (s *Service) burnPasswordCheck(plain string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("not-a-real-password", s.bcryptCost)
	})
	_ = utils.VerifyPassword(s.dummyHash, plain)
}

func (s *Service) publish(ctx context.Context, typ string, uid *uint64, email, detail string, client Client) {
	if s.events == nil {
		return
	}
	ev := queue.NewAuthEvent(typ, uid, email)
	ev.IP = client.IP
	ev.UserAgent = client.UserAgent
	ev.Detail = detail

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish audit event failed", zap.String("type", typ), zap.Error(err))
	}
}

func identityOf(u model.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func deviceInfo(c Client) string {
	return strings.TrimSpace(c.UserAgent)
}
