package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/medisync/internal/events"
	"github.com/Skotchmaster/medisync/internal/models"
	"github.com/Skotchmaster/medisync/internal/repo"
	"github.com/Skotchmaster/medisync/pkg/db"
	"github.com/Skotchmaster/medisync/pkg/hash"
	"github.com/Skotchmaster/medisync/pkg/revocation"
	"github.com/Skotchmaster/medisync/pkg/tokens"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type failingRegistry struct{}

func (failingRegistry) Revoke(context.Context, string, time.Time) error {
	return revocation.ErrUnavailable
}

func (failingRegistry) IsRevoked(context.Context, string) (bool, error) {
	return false, revocation.ErrUnavailable
}

func newTestAuthService(t *testing.T) (*AuthService, *recordingPublisher) {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(gdb))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	codec, err := tokens.NewCodec([]byte("test-jwt-secret"))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &AuthService{
		Repo:    &repo.GormRepo{DB: gdb},
		Hasher:  hash.NewHasher(bcrypt.MinCost),
		Codec:   codec,
		Revoked: revocation.NewMemory(),
		Events:  pub,
	}, pub
}

func TestAuthService_Register_Success(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)

	assert.EqualValues(t, 1, sess.User.ID)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.NotEqual(t, "Secret123", sess.User.PasswordHash)
	assert.Equal(t, 3600, sess.ExpiresIn())

	access, err := svc.Codec.VerifyKind(sess.AccessToken, tokens.KindAccess)
	require.NoError(t, err)
	assert.EqualValues(t, 1, access.UserID)
	assert.Equal(t, "Dr A", access.Name)
	assert.Equal(t, models.RoleDoctor, access.Role)
	assert.WithinDuration(t, time.Now().Add(AccessTTL), sess.AccessExp, 2*time.Second)

	refresh, err := svc.Codec.VerifyKind(sess.RefreshToken, tokens.KindRefresh)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refresh.UserID)
	assert.WithinDuration(t, time.Now().Add(RefreshTTL), sess.RefreshExp, 2*time.Second)

	assert.Equal(t, []events.Type{events.UserRegistered}, pub.types())
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Someone", "  A@X.com ", "Other1234", models.RolePatient)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		role     string
	}{
		{name: "empty name", userName: "", email: "a@x.com", password: "Secret123", role: "patient"},
		{name: "blank name", userName: "   ", email: "a@x.com", password: "Secret123", role: "patient"},
		{name: "empty email", userName: "A", email: "", password: "Secret123", role: "patient"},
		{name: "empty password", userName: "A", email: "a@x.com", password: "", role: "patient"},
		{name: "empty role", userName: "A", email: "a@x.com", password: "Secret123", role: ""},
		{name: "unknown role", userName: "A", email: "a@x.com", password: "Secret123", role: "admin"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess, err := svc.Register(ctx, tt.userName, tt.email, tt.password, tt.role)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Pat B", "b@x.com", "Secret123", models.RolePatient)
	require.NoError(t, err)

	sess, err := svc.Login(ctx, " B@x.COM", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)

	claims, err := svc.Codec.VerifyKind(sess.AccessToken, tokens.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, models.RolePatient, claims.Role)

	assert.Equal(t, []events.Type{events.UserRegistered, events.UserLoggedIn}, pub.types())
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Pat B", "b@x.com", "Secret123", models.RolePatient)
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@x.com", "Secret123")
	_, wrongErr := svc.Login(ctx, "b@x.com", "Wrong1234")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestAuthService_Login_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), "", "Secret123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Login(context.Background(), "b@x.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Login_StoreUnavailable(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	sqlDB, err := svc.Repo.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.Login(context.Background(), "b@x.com", "Secret123")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)

	first, err := svc.Refresh(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, first.User.ID)
	assert.NotEqual(t, reg.AccessToken, first.AccessToken)

	claims, err := svc.Codec.VerifyKind(first.AccessToken, tokens.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)

	// the first refresh token is still accepted
	second, err := svc.Refresh(ctx, reg.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, second.User.ID)
}

func TestAuthService_Refresh_Rejections(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)

	expired, _, err := svc.Codec.Issue(tokens.RefreshClaims(reg.User.ID), tokens.KindRefresh, 0)
	require.NoError(t, err)
	ghost, _, err := svc.Codec.Issue(tokens.RefreshClaims(99), tokens.KindRefresh, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "access token", token: reg.AccessToken, want: ErrInvalidToken},
		{name: "garbage", token: "garbage", want: ErrInvalidToken},
		{name: "empty", token: "", want: ErrInvalidToken},
		{name: "expired", token: expired, want: ErrInvalidToken},
		{name: "deleted user", token: ghost, want: ErrUserNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess, err := svc.Refresh(ctx, tt.token)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)
	claims, err := svc.Codec.VerifyKind(reg.AccessToken, tokens.KindAccess)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, reg.AccessToken, claims))
	require.NoError(t, svc.Logout(ctx, reg.AccessToken, claims))

	revoked, err := svc.Revoked.IsRevoked(ctx, reg.AccessToken)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, svc.Revoked.(*revocation.Memory).Len())

	assert.Equal(t,
		[]events.Type{events.UserRegistered, events.UserLoggedOut, events.UserLoggedOut},
		pub.types())
}

func TestAuthService_Logout_RegistryFailure(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	svc.Revoked = failingRegistry{}

	claims := tokens.AccessClaims(1, "Dr A", "a@x.com", models.RoleDoctor)
	err := svc.Logout(context.Background(), "tok", &claims)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, revocation.ErrUnavailable)
}

func TestAuthService_PublishFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	svc, pub := newTestAuthService(t)
	pub.err = errors.New("broker down")

	sess, err := svc.Register(context.Background(), "Dr A", "a@x.com", "Secret123", models.RoleDoctor)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Len(t, pub.types(), 1)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com\t"))
	assert.Equal(t, "", NormalizeEmail("   "))
}
