package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"staffbook-backend/internal/apperr"
	"staffbook-backend/internal/config"
	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/metrics"
	"staffbook-backend/internal/ports"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Notifier fans a message out to a set of users.
type Notifier interface {
	Notify(ctx context.Context, companyID int64, recipients []int64, m Message) int
}

type AuthService struct {
	Config    config.Config
	Users     ports.UserStore
	Companies ports.CompanyStore
	Notifier  Notifier
	Activity  ports.ActivityStore
	Logger    *slog.Logger
	Clock     Clock
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.User
	ExpiresAt    time.Time
}

type CreateCompanyInput struct {
	CompanyName string
	OwnerName   string
	Email       string
	Password    string
	Phone       string
}

type RegisterInput struct {
	CompanyID int64
	Name      string
	Email     string
	Password  string
	Role      domain.UserRole
	Phone     string
	Position  string
}

type LoginInput struct {
	Email    string
	Password string
}

type RefreshInput struct {
	RefreshToken string
}

// CreateCompany bootstraps a tenant and its owner. The owner starts approved
// with onboarding done.
func (s AuthService) CreateCompany(ctx context.Context, in CreateCompanyInput) (*AuthResult, error) {
	if strings.TrimSpace(in.CompanyName) == "" {
		return nil, apperr.Validation("company name is required")
	}
	if err := validateCredentials(in.OwnerName, in.Email, in.Password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	company, owner, err := s.Companies.CreateWithOwner(ctx, in.CompanyName, ports.NewUser{
		Name:                in.OwnerName,
		Email:               in.Email,
		PasswordHash:        hash,
		Role:                domain.RoleOwner,
		Status:              domain.StatusApproved,
		Phone:               in.Phone,
		OnboardingCompleted: true,
	})
	if err != nil {
		return nil, err
	}
	s.log().Info("company created", "company_id", company.ID, "owner_id", owner.ID)
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: company.ID,
		ActorID:   &owner.ID,
		Action:    "company.created",
		Entity:    "company",
		EntityID:  &company.ID,
		Message:   company.Name,
		LoggedAt:  s.Clock.now(),
	})
	return s.issueTokens(owner)
}

// Register creates a pending account and tells the company's managers.
func (s AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validateCredentials(in.Name, in.Email, in.Password); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleEmployee
	}
	if in.Role != domain.RoleEmployee && in.Role != domain.RoleManager {
		return nil, apperr.Validation("role must be employee or manager")
	}
	if in.CompanyID <= 0 {
		return nil, apperr.Validation("companyId is required")
	}
	if _, err := s.Companies.Get(ctx, in.CompanyID); err != nil {
		return nil, notFound(err, "company")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.Users.Create(ctx, ports.NewUser{
		CompanyID:    in.CompanyID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       domain.StatusPending,
		Phone:        in.Phone,
		Position:     in.Position,
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition("user", string(domain.StatusPending))
	audit(ctx, s.Activity, s.Logger, domain.ActivityLog{
		CompanyID: user.CompanyID,
		ActorID:   &user.ID,
		Action:    "user.registered",
		Entity:    "user",
		EntityID:  &user.ID,
		Message:   user.Name + " registered as " + string(user.Role),
		LoggedAt:  s.Clock.now(),
	})
	s.notifyRegistration(ctx, user)
	return s.issueTokens(user)
}

func (s AuthService) notifyRegistration(ctx context.Context, user *domain.User) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(ctx, user.CompanyID, []int64{user.ID}, Message{
		Title:   "Registration received",
		Message: "Your account is waiting for approval.",
		Type:    domain.NotificationInfo,
		Action:  domain.OpenHandbookAction{Status: domain.StatusPending},
	})
	managers, err := s.Users.ListManagement(ctx, user.CompanyID)
	if err != nil {
		s.log().Error("load managers for registration notice failed", "company_id", user.CompanyID, "err", err)
		return
	}
	ids := make([]int64, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	s.Notifier.Notify(ctx, user.CompanyID, ids, Message{
		Title:   "New registration",
		Message: fmt.Sprintf("%s registered as %s and needs review.", user.Name, user.Role),
		Type:    domain.NotificationInfo,
		Action:  domain.ReviewRegistrationAction{UserID: user.ID, Name: user.Name, Role: user.Role},
	})
}

func (s AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.Users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if disabled(user) {
		return nil, apperr.ErrAccountDisabled
	}
	return s.issueTokens(user)
}

func (s AuthService) Refresh(ctx context.Context, in RefreshInput) (*AuthResult, error) {
	token, err := jwt.Parse(in.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.ErrInvalidToken
		}
		return []byte(s.Config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.ErrInvalidToken
	}
	if claims["token_type"] != "refresh" {
		return nil, apperr.ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, apperr.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, apperr.ErrInvalidToken
	}

	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperr.ErrInvalidToken
		}
		return nil, err
	}
	if disabled(user) {
		return nil, apperr.ErrAccountDisabled
	}
	return s.issueTokens(user)
}

func (s AuthService) issueTokens(user *domain.User) (*AuthResult, error) {
	now := s.Clock.now()
	accessExp := now.Add(s.Config.AccessTokenTTL)
	refreshExp := now.Add(s.Config.RefreshTokenTTL)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        fmt.Sprintf("%d", user.ID),
		"email":      user.Email,
		"role":       user.Role,
		"company_id": user.CompanyID,
		"token_type": "access",
		"exp":        accessExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        fmt.Sprintf("%d", user.ID),
		"token_type": "refresh",
		"exp":        refreshExp.Unix(),
		"iat":        now.Unix(),
	}).SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         *user,
		ExpiresAt:    accessExp,
	}, nil
}

func (s AuthService) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func validateCredentials(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name is required")
	}
	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Validation("email is invalid")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func disabled(u *domain.User) bool {
	return u.Status == domain.StatusRejected || u.Status == domain.StatusInactive
}
