package identity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/identity"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Password1", wantErr: false},
		{name: "too short", password: "Pa1", wantErr: true},
		{name: "no uppercase", password: "password1", wantErr: true},
		{name: "no lowercase", password: "PASSWORD1", wantErr: true},
		{name: "no digit", password: "Passwordd", wantErr: true},
		{name: "empty", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.ValidatePasswordStrength(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, identity.KindValidation, identity.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, identity.ValidateEmail("john.doe@example.com"))
	require.Error(t, identity.ValidateEmail(""))
	require.Error(t, identity.ValidateEmail("not-an-email"))
	require.Error(t, identity.ValidateEmail("nodot@com"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "already e164", input: "+14155552671", want: "+14155552671"},
		{name: "spaces and dashes", input: "+1 415-555-2671", want: "+14155552671"},
		{name: "parentheses", input: "+1 (415) 555-2671", want: "+14155552671"},
		{name: "no plus", input: "14155552671", want: "+14155552671"},
		{name: "too short", input: "+12345", wantErr: true},
		{name: "too long", input: "+1234567890123456", wantErr: true},
		{name: "letters", input: "+1415CALLNOW", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity.NormalizePhone(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, identity.KindValidation, identity.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
