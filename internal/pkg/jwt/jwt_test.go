package jwt_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oof2win2/library-review-site/internal/pkg/jwt"
)

var (
	secretTest = []byte("test")
	claimsTest = jwt.Claims{
		SessionID: uuid.MustParse("8ee4e645-b894-4477-820b-48381e10677f"),
		SubjectID: 42,
		IssuedAt:  time.Unix(1700000000, 0),
		ExpiresAt: time.Unix(1700003600, 0),
	}
)

func TestSignVerify(t *testing.T) {
	token, err := jwt.Sign(claimsTest, secretTest)
	require.NoError(t, err)

	got, err := jwt.Verify(token, secretTest)
	require.NoError(t, err)

	assert.Equal(t, claimsTest.SessionID, got.SessionID)
	assert.Equal(t, claimsTest.SubjectID, got.SubjectID)
	assert.True(t, claimsTest.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, claimsTest.ExpiresAt.Equal(got.ExpiresAt))
}

func TestVerifyIgnoresExpiry(t *testing.T) {
	expired := claimsTest
	expired.IssuedAt = time.Now().Add(-2 * time.Hour)
	expired.ExpiresAt = time.Now().Add(-1 * time.Hour)

	token, err := jwt.Sign(expired, secretTest)
	require.NoError(t, err)

	// The store record is the expiry authority, so the codec must not reject
	// a stale exp claim.
	_, err = jwt.Verify(token, secretTest)
	assert.NoError(t, err)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := jwt.Sign(claimsTest, secretTest)
	require.NoError(t, err)

	_, err = jwt.Verify(token, []byte("other"))
	assert.ErrorIs(t, err, jwt.ErrBadSignature)
}

func TestVerifyTamperedPayload(t *testing.T) {
	token, err := jwt.Sign(claimsTest, secretTest)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Re-encode a payload that decodes cleanly but was not signed.
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), `"42"`, `"43"`, 1)
	require.NotEqual(t, string(payload), forged)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = jwt.Verify(strings.Join(parts, "."), secretTest)
	assert.ErrorIs(t, err, jwt.ErrBadSignature)
}

func TestVerifyMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "two_segments", token: "aaaa.bbbb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwt.Verify(tt.token, secretTest)
			assert.ErrorIs(t, err, jwt.ErrMalformedToken)
		})
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.RegisteredClaims{
		ID:       claimsTest.SessionID.String(),
		Audience: gojwt.ClaimStrings{"42"},
	})
	signed, err := token.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwt.Verify(signed, secretTest)
	assert.Error(t, err)
}

func TestVerifyBadClaimShape(t *testing.T) {
	tests := []struct {
		name   string
		claims gojwt.RegisteredClaims
	}{
		{
			name: "jti_not_uuid",
			claims: gojwt.RegisteredClaims{
				ID:        "not-a-uuid",
				Audience:  gojwt.ClaimStrings{"42"},
				IssuedAt:  gojwt.NewNumericDate(claimsTest.IssuedAt),
				ExpiresAt: gojwt.NewNumericDate(claimsTest.ExpiresAt),
			},
		},
		{
			name: "aud_not_numeric",
			claims: gojwt.RegisteredClaims{
				ID:        claimsTest.SessionID.String(),
				Audience:  gojwt.ClaimStrings{"forty-two"},
				IssuedAt:  gojwt.NewNumericDate(claimsTest.IssuedAt),
				ExpiresAt: gojwt.NewNumericDate(claimsTest.ExpiresAt),
			},
		},
		{
			name: "missing_timestamps",
			claims: gojwt.RegisteredClaims{
				ID:       claimsTest.SessionID.String(),
				Audience: gojwt.ClaimStrings{"42"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, tt.claims).SignedString(secretTest)
			require.NoError(t, err)

			_, err = jwt.Verify(signed, secretTest)
			assert.ErrorIs(t, err, jwt.ErrMalformedToken)
		})
	}
}
