package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret []byte
	jwtIssuer string
	jwtTTL    time.Duration
)

// Init configures the signing key and token lifetime. Must be called
// before any token is issued or validated.
func Init(secret, issuer string, ttl time.Duration) {
	jwtSecret = []byte(secret)
	jwtIssuer = issuer
	jwtTTL = ttl
}

// Claims is the credential payload: account identity plus the admin
// flag. Downstream code trusts these claims once the signature checks
// out; it never re-verifies them against storage.
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateJWT issues a signed credential for the given account.
func GenerateJWT(userID uuid.UUID, email string, isAdmin bool) (string, error) {
	return generate(userID, email, isAdmin, jwtTTL)
}

// GenerateShortJWT issues a credential with a reduced lifetime, used
// after a successful two-factor step.
func GenerateShortJWT(userID uuid.UUID, email string, isAdmin bool) (string, error) {
	return generate(userID, email, isAdmin, time.Hour)
}

func generate(userID uuid.UUID, email string, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateJWT validates a token string and returns the claims if valid.
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err // covers expiration and invalid signatures
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
