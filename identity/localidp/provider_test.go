package localidp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/identity/localidp"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "Password1"
)

func TestSignUpAndSignIn(t *testing.T) {
	p := localidp.New()
	ctx := context.Background()

	grant, err := p.SignUp(ctx, testEmail, testPassword, map[string]any{"role": "user", "name": "John Doe"})
	require.NoError(t, err)
	require.NotEmpty(t, grant.Record.ID)
	require.Equal(t, "user", grant.Record.RoleClaim)
	require.Equal(t, "John Doe", grant.Record.DisplayName)

	_, err = p.SignUp(ctx, testEmail, testPassword, nil)
	require.Error(t, err)
	require.Equal(t, identity.KindAlreadyRegistered, identity.KindOf(err))

	signedIn, err := p.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, grant.Record.ID, signedIn.Record.ID)

	_, err = p.SignIn(ctx, testEmail, "WrongPassword1")
	require.Error(t, err)
	require.Equal(t, identity.KindInvalidCredentials, identity.KindOf(err))

	_, err = p.SignIn(ctx, "nobody@example.com", testPassword)
	require.Error(t, err)
	require.Equal(t, identity.KindInvalidCredentials, identity.KindOf(err))
}

func TestTokenLifecycle(t *testing.T) {
	p := localidp.New()
	ctx := context.Background()

	grant, err := p.SignUp(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	rec, err := p.CurrentUser(ctx, grant.AccessToken)
	require.NoError(t, err)
	require.Equal(t, grant.Record.ID, rec.ID)

	require.NoError(t, p.SignOut(ctx, grant.AccessToken))

	_, err = p.CurrentUser(ctx, grant.AccessToken)
	require.Error(t, err)
	require.Equal(t, identity.KindMissingOrExpiredToken, identity.KindOf(err))
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	p := localidp.New().WithNowTime(func() time.Time { return now })
	ctx := context.Background()

	grant, err := p.SignUp(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	_, err = p.CurrentUser(ctx, grant.AccessToken)
	require.Error(t, err)
	require.Equal(t, identity.KindMissingOrExpiredToken, identity.KindOf(err))
}

func TestPasswordRecoveryFlow(t *testing.T) {
	p := localidp.New()
	ctx := context.Background()

	_, err := p.SignUp(ctx, testEmail, testPassword, nil)
	require.NoError(t, err)

	// Unknown addresses report success and issue nothing.
	require.NoError(t, p.RequestPasswordReset(ctx, "nobody@example.com", ""))
	require.Empty(t, p.LastRecoveryToken())

	require.NoError(t, p.RequestPasswordReset(ctx, testEmail, ""))
	recovery := p.LastRecoveryToken()
	require.NotEmpty(t, recovery)

	require.NoError(t, p.UpdatePassword(ctx, recovery, "NewPassword1"))

	// Recovery tokens are single use.
	err = p.UpdatePassword(ctx, recovery, "AnotherPassword1")
	require.Error(t, err)
	require.Equal(t, identity.KindMissingOrExpiredToken, identity.KindOf(err))

	_, err = p.SignIn(ctx, testEmail, testPassword)
	require.Error(t, err, "old password no longer works")

	_, err = p.SignIn(ctx, testEmail, "NewPassword1")
	require.NoError(t, err)
}

func TestSetRoleClaim(t *testing.T) {
	p := localidp.New()
	ctx := context.Background()

	grant, err := p.SignUp(ctx, testEmail, testPassword, map[string]any{"role": "user"})
	require.NoError(t, err)

	require.True(t, p.SetRoleClaim(testEmail, "admin"))
	require.False(t, p.SetRoleClaim("nobody@example.com", "admin"))

	rec, err := p.CurrentUser(ctx, grant.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", rec.RoleClaim)
}
