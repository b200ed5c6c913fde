// Package auth выполняет вход администраторов и выпуск JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	MinSecretLength = 16
)

// Исходы входа для метрик.
const (
	loginSuccess = "success"
	loginFailure = "invalid_credentials"
	loginError   = "error"
)

// Principal — проверенный субъект запроса.
type Principal struct {
	AdminID  int64
	Username string
	Role     string
}

// IsAdmin сообщает, есть ли у субъекта роль администратора.
func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// Claims кладутся в JWT.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	AdminID  int64  `json:"admin_id"`
	jwt.RegisteredClaims
}

// Config задаёт параметры выпуска токенов и хеширования.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
	Issuer     string
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration — данные нового администратора.
type Registration struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email" validate:"required,email"`
}

// Service проверяет пароли и работает с токенами.
type Service struct {
	tx        domain.Transactor
	admins    domain.AdminRepository
	secret    []byte
	ttl       time.Duration
	cost      int
	issuer    string
	dummyHash []byte
	logger    *log.Entry
	metrics   *metrics.ShelterMetrics
	now       func() time.Time
}

// NewService создаёт сервис аутентификации.
func NewService(tx domain.Transactor, admins domain.AdminRepository, cfg Config, logger *log.Entry, m *metrics.ShelterMetrics) (*Service, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}
	if logger == nil {
		logger = log.WithField("component", "auth")
	}

	// Сравнение с этим хешем выполняется, когда пользователь не найден.
	dummy, err := bcrypt.GenerateFromPassword([]byte("straycare-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Service{
		tx:        tx,
		admins:    admins,
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TokenTTL,
		cost:      cfg.BcryptCost,
		issuer:    cfg.Issuer,
		dummyHash: dummy,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login проверяет учётные данные и выпускает токен.
// Неизвестное имя и неверный пароль дают одну и ту же ошибку.
func (s *Service) Login(ctx context.Context, creds Credentials) (string, Principal, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := domain.ValidateStruct(creds, "Missing fields"); err != nil {
		return "", Principal{}, err
	}

	admin, err := s.admins.FindAdminByUsername(ctx, creds.Username)
	switch {
	case errors.Is(err, domain.ErrAdminNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(creds.Password))
		s.metrics.RecordLogin(loginFailure)
		s.logger.WithField("username", creds.Username).Info("login rejected")
		return "", Principal{}, domain.Unauthorized(domain.ErrInvalidCredentials)
	case err != nil:
		s.metrics.RecordLogin(loginError)
		return "", Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(creds.Password)); err != nil {
		s.metrics.RecordLogin(loginFailure)
		s.logger.WithField("username", creds.Username).Info("login rejected")
		return "", Principal{}, domain.Unauthorized(domain.ErrInvalidCredentials)
	}

	principal := Principal{AdminID: admin.ID, Username: admin.Username, Role: admin.Role}
	token, err := s.IssueToken(principal)
	if err != nil {
		s.metrics.RecordLogin(loginError)
		return "", Principal{}, err
	}

	s.metrics.RecordLogin(loginSuccess)
	s.logger.WithFields(log.Fields{"admin_id": admin.ID, "username": admin.Username}).Info("admin logged in")
	return token, principal, nil
}

// Register создаёт администратора. Имя пользователя уникально.
func (s *Service) Register(ctx context.Context, reg Registration) (int64, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := domain.ValidateStruct(reg, "invalid registration"); err != nil {
		return 0, err
	}

	hash, err := HashPassword(reg.Password, s.cost)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		id, err = tx.Insert(ctx, domain.TableAdmins, domain.Fields{
			"username":      reg.Username,
			"email":         reg.Email,
			"password_hash": hash,
			"role":          domain.RoleAdmin,
		})
		return err
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return 0, domain.ErrUsernameTaken
	}
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(log.Fields{"admin_id": id, "username": reg.Username}).Info("admin registered")
	return id, nil
}

// IssueToken подписывает токен HS256 для субъекта.
func (s *Service) IssueToken(p Principal) (string, error) {
	now := s.now()
	claims := Claims{
		Username: p.Username,
		Role:     p.Role,
		AdminID:  p.AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken проверяет подпись и срок действия.
// Просроченный токен даёт 401, неверный 403.
func (s *Service) ParseToken(raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return Principal{}, domain.Unauthorized(domain.ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Principal{}, domain.Unauthorized(domain.ErrTokenExpired)
	case err != nil:
		return Principal{}, domain.Forbidden(fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err))
	}

	return Principal{AdminID: claims.AdminID, Username: claims.Username, Role: claims.Role}, nil
}
