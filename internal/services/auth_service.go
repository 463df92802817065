package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Claims is the identity carried by an access token.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  models.SafeUser `json:"user"`
	Token string          `json:"token"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, cfg config.JWTConfig, log *zap.Logger) *AuthService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(cfg.Secret),
		tokenTTL:  ttl,
		now:       time.Now,
		log:       log.Named("services.auth"),
	}
}

// Register creates a customer account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("User already exists")
	}

	user, err := s.userRepo.Create(ctx, models.CreateUserData{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	logger.FromContext(ctx, s.log).Info("New user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.userRepo.VerifyPassword(user, password) {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	logger.FromContext(ctx, s.log).Info("User logged in", zap.String("user_id", user.ID))
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Safe(), Token: token}, nil
}

// GenerateToken signs an HS256 token for the user.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.log.Debug("Token validation failed", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	userID, _ := mapClaims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("invalid token: missing user_id")
	}
	email, _ := mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	return &Claims{UserID: userID, Email: email, Role: role}, nil
}

// ErrAccountNotFound is returned by Authenticate when the token is valid but
// its user no longer exists.
var ErrAccountNotFound = errors.New("account not found")

// Authenticate validates the token and loads its user. Email and role come
// from the stored record, not from the token.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token user: %w", err)
	}
	if user == nil {
		s.log.Info("Token presented for missing user", zap.String("user_id", claims.UserID))
		return nil, ErrAccountNotFound
	}
	return &Claims{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}
