package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/cart"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/domain/user"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/memory"
	svcerrors "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/errors"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/pkg/logger"
)

type fakeSigner struct{}

func (fakeSigner) Sign(userID, role string) (string, time.Time, error) {
	return "token-" + userID + "-" + role, time.Now().Add(time.Hour), nil
}

type recordingClearer struct {
	cleared []string
	err     error
}

func (r *recordingClearer) ClearCart(_ context.Context, userID string) (cart.View, error) {
	if r.err != nil {
		return cart.View{}, r.err
	}
	r.cleared = append(r.cleared, userID)
	return cart.View{}, nil
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, fakeSigner{}, logger.Discard())
	svc.WithPasswordPolicy(bcrypt.MinCost, 6)
	return svc, store
}

func signup(t *testing.T, svc *Service, name string) user.User {
	t.Helper()
	u, err := svc.Signup(context.Background(), SignupInput{
		Username: name,
		Email:    name + "@cegep.ca",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestSignup(t *testing.T) {
	svc, _ := newService(t)
	u, err := svc.Signup(context.Background(), SignupInput{
		Username:  "  alice ",
		Email:     "Alice@Cegep.CA",
		Password:  "secret123",
		FirstName: "Alice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@cegep.ca", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	assert.Equal(t, user.AvatarURL("alice"), u.Avatar)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newService(t)
	cases := map[string]SignupInput{
		"short password": {Username: "bob", Email: "bob@cegep.ca", Password: "12345"},
		"no username":    {Username: " ", Email: "bob@cegep.ca", Password: "secret123"},
		"bad email":      {Username: "bob", Email: "not-an-email", Password: "secret123"},
		"long username":  {Username: string(make([]byte, 51)), Email: "bob@cegep.ca", Password: "secret123"},
	}
	for name, in := range cases {
		_, err := svc.Signup(context.Background(), in)
		assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation), name)
	}
}

func TestSignupDuplicate(t *testing.T) {
	svc, _ := newService(t)
	signup(t, svc, "alice")

	_, err := svc.Signup(context.Background(), SignupInput{Username: "other", Email: "alice@cegep.ca", Password: "secret123"})
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeDuplicateKey, se.Code)
	assert.Equal(t, "email", se.Details["field"])
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	u := signup(t, svc, "alice")

	res, err := svc.Login(ctx, "ALICE@cegep.ca", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "token-"+u.ID+"-user", res.Token)
	assert.Equal(t, u.ID, res.User.ID)

	_, err = svc.Login(ctx, "nobody@cegep.ca", "secret123")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))

	_, err = svc.Login(ctx, "alice@cegep.ca", "wrong-password")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeUnauthorized))

	_, err = svc.UpdateUser(ctx, u.ID, Update{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice@cegep.ca", "secret123")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeForbidden))
}

func TestLoginWithoutSigner(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, logger.Discard())
	svc.WithPasswordPolicy(bcrypt.MinCost, 6)
	signup(t, svc, "alice")

	_, err := svc.Login(context.Background(), "alice@cegep.ca", "secret123")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeInternal))
}

func TestResolveCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := signup(t, svc, "alice")

	role, err := svc.ResolveRole(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, role)

	// A write that bypasses the service is not seen until the entry is evicted.
	raw, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	raw.IsAdmin = true
	_, err = store.UpdateUser(ctx, raw)
	require.NoError(t, err)
	role, err = svc.ResolveRole(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleUser, role)

	_, err = svc.UpdateUser(ctx, u.ID, Update{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, u.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeForbidden))
}

func TestResolveDeletedUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	u := signup(t, svc, "alice")
	_, err := svc.Resolve(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	_, err = svc.Resolve(ctx, u.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeUnauthorized))
}

func TestUpdateUserRefusesPassword(t *testing.T) {
	svc, _ := newService(t)
	u := signup(t, svc, "alice")

	_, err := svc.UpdateUser(context.Background(), u.ID, Update{Password: ptr("newsecret")})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	updated, err := svc.UpdateUser(context.Background(), u.ID, Update{IsAdmin: ptr(true), LastName: ptr(" Liddell ")})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)
	assert.Equal(t, "Liddell", updated.LastName)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	u := signup(t, svc, "alice")

	_, err := svc.UpdateProfile(ctx, u.ID, Update{Password: ptr("x")})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))
	_, err = svc.UpdateProfile(ctx, u.ID, Update{IsAdmin: ptr(true)})
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	updated, err := svc.UpdateProfile(ctx, u.ID, Update{FirstName: ptr("Al"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Al", updated.FirstName)
	assert.True(t, updated.IsActive, "profile updates cannot disable the account")
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	clearer := &recordingClearer{}
	svc.WithCartClearer(clearer)

	u := signup(t, svc, "alice")
	admin, err := svc.Signup(ctx, SignupInput{Username: "admin", Email: "admin@cegep.ca", Password: "secret123", IsAdmin: true})
	require.NoError(t, err)

	err = svc.DeleteProfile(ctx, admin.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	require.NoError(t, svc.DeleteProfile(ctx, u.ID))
	assert.Equal(t, []string{u.ID}, clearer.cleared)

	_, err = svc.GetProfile(ctx, u.ID)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeNotFound))
}

func TestDeleteUserKeepsAccountWhenCartClearFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.WithCartClearer(&recordingClearer{err: errors.New("boom")})
	u := signup(t, svc, "alice")

	require.Error(t, svc.DeleteUser(ctx, u.ID))
	_, err := svc.GetUser(ctx, u.ID)
	assert.NoError(t, err)
}

func TestGetUserInvalidID(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetUser(context.Background(), "nope")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeInvalidID))
}
