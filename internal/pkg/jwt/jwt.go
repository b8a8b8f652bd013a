package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformedToken = errors.New("token is malformed")
	ErrBadSignature   = errors.New("token signature mismatch")
)

// Claims is the signed payload of a session credential: the session id (jti),
// the owning user (aud) and the issue/expiry timestamps of the stored record.
type Claims struct {
	SessionID uuid.UUID
	SubjectID int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func Sign(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        claims.SessionID.String(),
		Audience:  jwt.ClaimStrings{strconv.FormatInt(claims.SubjectID, 10)},
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	return token.SignedString(secret)
}

// Verify checks the signature and the claim shape. It deliberately does not
// check expiry against the clock: the stored session record is the authority
// there, and the session service enforces it after the lookup.
func Verify(tokenString string, secret []byte) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &registered, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, fmt.Errorf("%w: %w", ErrBadSignature, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	sessionID, err := uuid.Parse(registered.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad jti claim", ErrMalformedToken)
	}
	if len(registered.Audience) != 1 {
		return Claims{}, fmt.Errorf("%w: bad aud claim", ErrMalformedToken)
	}
	subjectID, err := strconv.ParseInt(registered.Audience[0], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad aud claim", ErrMalformedToken)
	}
	if registered.IssuedAt == nil || registered.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing iat or exp claim", ErrMalformedToken)
	}

	return Claims{
		SessionID: sessionID,
		SubjectID: subjectID,
		IssuedAt:  registered.IssuedAt.Time,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}
