package jwt

import (
	"errors"
	"time"

	"securestop-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "securestop"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

type JWTUtil struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

// Claims carries the caller identity. Role selects which alerts the caller sees.
type Claims struct {
	UserID     string      `json:"user_id"`
	Role       models.Role `json:"role"`
	VehicleIDs []string    `json:"vehicle_ids,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTUtil builds a signer/validator. An unparsable expiry means 24h.
func NewJWTUtil(secret, expiry string) *JWTUtil {
	d, err := time.ParseDuration(expiry)
	if err != nil || d <= 0 {
		d = 24 * time.Hour
	}
	return &JWTUtil{
		secretKey: []byte(secret),
		expiry:    d,
		now:       time.Now,
	}
}

func (j *JWTUtil) GenerateToken(userID string, role models.Role, vehicleIDs ...string) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	now := j.now()
	claims := &Claims{
		UserID:     userID,
		Role:       role,
		VehicleIDs: vehicleIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}

// RefreshToken reissues tokens that expire within the hour
func (j *JWTUtil) RefreshToken(tokenString string) (string, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}

	if claims.ExpiresAt.Time.Sub(j.now()) > time.Hour {
		return tokenString, nil
	}
	return j.GenerateToken(claims.UserID, claims.Role, claims.VehicleIDs...)
}
