package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims is the JWT payload for access tokens.
type Claims struct {
	UserID string   `json:"user_id"`
	Role   string   `json:"role"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*types.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseAccessToken(tokenString string) (*Claims, error)
}

type authService struct {
	db        *gorm.DB
	log       *logger.Logger
	userRepo  repos.UserRepo
	tokenRepo repos.UserTokenRepo
	jwtSecret []byte
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, tokenRepo repos.UserTokenRepo, jwtSecret string) AuthService {
	return &authService{
		db:        db,
		log:       baseLog.With("service", "AuthService"),
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*types.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, apierr.New(http.StatusBadRequest, "invalid_credentials", fmt.Errorf("email and password are required"))
	}
	exists, err := s.userRepo.EmailExists(ctx, nil, email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, apierr.New(http.StatusConflict, "email_taken", fmt.Errorf("email %s already registered", email))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	user := &types.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hash),
		Name:     name,
		Role:     "user",
	}
	if _, err := s.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		return nil, nil, err
	}
	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("User registered", "user_id", user.ID)
	return user, pair, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	}
	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.tokenRepo.GetByToken(ctx, nil, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now().UTC()) {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("refresh token is invalid or expired"))
	}
	user, err := s.userRepo.GetByID(ctx, nil, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("refresh token user no longer exists"))
	}
	// Rotate: the old token is revoked the moment a new pair is cut.
	if err := s.tokenRepo.DeleteByToken(ctx, nil, refreshToken); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokenRepo.DeleteByToken(ctx, nil, refreshToken)
}

func (s *authService) ParseAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("access token is invalid"))
	}
	return claims, nil
}

func (s *authService) issueTokens(ctx context.Context, user *types.User) (*TokenPair, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: user.ID.String(),
		Role:   user.Role,
		Roles:  user.RoleNames(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshRaw := make([]byte, 32)
	if _, err := rand.Read(refreshRaw); err != nil {
		return nil, err
	}
	refresh := hex.EncodeToString(refreshRaw)
	if _, err := s.tokenRepo.Create(ctx, nil, &types.UserToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: now.Add(refreshTokenTTL),
	}); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
