package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnexpectedSignAlgo = errors.New("unexpected signing method")
)

// Identity is the canonical shape every credential is normalized into at
// the external-identity boundary.
type Identity struct {
	UserID string
	Name   string
}

type AuthService interface {
	GenerateToken(userID, name string) (string, error)
	VerifyToken(tokenString string) (*Identity, error)
}

type authService struct {
	secretKey string
}

func NewAuthService(secretKey string) AuthService {
	return &authService{
		secretKey: secretKey,
	}
}

func (that *authService) GenerateToken(userID, name string) (string, error) {
	claims := jwt.MapClaims{}
	claims["sub"] = userID
	claims["name"] = name
	claims["exp"] = time.Now().Add(time.Hour * 24).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(that.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken validates the opaque credential a client presented on login
// and maps it to a stable identity.
func (that *authService) VerifyToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSignAlgo, token.Header["alg"])
		}

		return []byte(that.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	identity := &Identity{UserID: userID}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}

	return identity, nil
}
