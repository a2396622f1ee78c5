package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

const MsgRegistered = "Registration successful"

// friendCodeAttempts bounds code generation so a pathological collision
// streak cannot loop forever.
const friendCodeAttempts = 20

type AuthConfig struct {
	JWTSecret      string
	AccessTokenTTL time.Duration
}

type Session struct {
	Token    string `json:"token"`
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

type AuthService interface {
	Register(ctx context.Context, username, password, repeat, inviteCode string) (string, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	// VerifyToken maps a session token to a user id; the black-box
	// authenticate(token) collaborator the rest of the system depends on.
	VerifyToken(token string) (int64, error)
	// Logout releases the user's question claims so nobody waits on a
	// claim held by a departed user.
	Logout(ctx context.Context, userID int64) error
}

type authService struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    AuthConfig
	users  repos.UserRepo
	claims ClaimService
	ledger LedgerService
}

func NewAuthService(db *gorm.DB, log *logger.Logger, cfg AuthConfig, users repos.UserRepo, claims ClaimService, ledger LedgerService) AuthService {
	return &authService{
		db:     db,
		log:    log.With("service", "AuthService"),
		cfg:    cfg,
		users:  users,
		claims: claims,
		ledger: ledger,
	}
}

func (s *authService) Register(ctx context.Context, username, password, repeat, inviteCode string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return "", apierr.Validation("invalid_credentials", fmt.Errorf("username and password must not be empty"))
	}
	if password != repeat {
		return "", apierr.New(422, "password_mismatch", fmt.Errorf("the two passwords do not match"))
	}

	existing, err := s.users.GetByUsername(ctx, nil, username)
	if err != nil {
		return "", apierr.Persistence("user_lookup_failed", err)
	}
	if existing != nil {
		return "", apierr.New(409, "username_taken", fmt.Errorf("username %q is already registered", username))
	}

	code, err := s.generateFriendCode(ctx)
	if err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apierr.New(500, "password_hash_failed", err)
	}

	referrer, err := s.users.GetByFriendCode(ctx, nil, strings.TrimSpace(inviteCode))
	if err != nil {
		return "", apierr.Persistence("referrer_lookup_failed", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		score := 0
		if referrer != nil {
			score = ScoreReferralBonus
		}
		user, err := s.users.Create(ctx, tx, &types.User{
			Username:   username,
			Password:   string(hashed),
			Score:      score,
			FriendCode: code,
		})
		if err != nil {
			return err
		}
		if referrer != nil {
			if _, err := s.ledger.TryGrant(ctx, tx, user.ID, types.AchievementFriendCode, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apierr.IsDuplicateKey(err) {
			return "", apierr.New(409, "username_taken", err)
		}
		return "", apierr.Persistence("registration_failed", err)
	}
	s.log.Info("User registered", "username", username, "referred", referrer != nil)
	return MsgRegistered, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*Session, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, apierr.Validation("invalid_credentials", fmt.Errorf("username and password must not be empty"))
	}
	user, err := s.users.GetByUsername(ctx, nil, username)
	if err != nil {
		return nil, apierr.Persistence("user_lookup_failed", err)
	}
	// The AI identity is not a login account.
	if user == nil || user.ID == types.AIUserID {
		return nil, apierr.New(401, "bad_credentials", fmt.Errorf("wrong username or password"))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apierr.New(401, "bad_credentials", fmt.Errorf("wrong username or password"))
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, apierr.New(500, "token_issue_failed", err)
	}
	return &Session{Token: token, UserID: user.ID, Username: user.Username}, nil
}

func (s *authService) issueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *authService) VerifyToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, apierr.New(401, "invalid_token", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, apierr.New(401, "invalid_token", fmt.Errorf("missing subject"))
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apierr.New(401, "invalid_token", err)
	}
	return userID, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	return s.claims.Release(ctx, userID)
}

// generateFriendCode builds a unique 0000-0000-0000 code.
func (s *authService) generateFriendCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < friendCodeAttempts; attempt++ {
		blocks := make([]string, 3)
		for i := range blocks {
			blocks[i] = fmt.Sprintf("%04d", rand.IntN(10000))
		}
		code := strings.Join(blocks, "-")

		existing, err := s.users.GetByFriendCode(ctx, nil, code)
		if err != nil {
			return "", apierr.Persistence("friend_code_lookup_failed", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", apierr.New(500, "friend_code_exhausted", fmt.Errorf("could not generate a unique friend code"))
}
