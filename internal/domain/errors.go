package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrVolunteerNotFound возвращается, если волонтёр не найден.
	ErrVolunteerNotFound = errors.New("volunteer not found")
	// ErrDonationNotFound возвращается, если пожертвование с таким внешним идентификатором не найдено.
	ErrDonationNotFound = errors.New("donation not found")
	// ErrAnimalNotFound возвращается, если животное не найдено.
	ErrAnimalNotFound = errors.New("animal not found")
	// ErrAdoptionNotFound возвращается, если заявка на усыновление не найдена.
	ErrAdoptionNotFound = errors.New("adoption request not found")
	// ErrReportNotFound возвращается, если сообщение о бездомном животном не найдено.
	ErrReportNotFound = errors.New("report not found")
	// ErrAdminNotFound возвращается, если администратор не найден.
	ErrAdminNotFound = errors.New("admin not found")

	// ErrDuplicate сигнализирует о нарушении ограничения уникальности в хранилище.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUsernameTaken — имя администратора уже занято.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrEmptyPatch — в запросе на обновление нет ни одного поля.
	ErrEmptyPatch = errors.New("no fields to update")

	// ErrUnauthenticated возвращается для запроса без токена.
	ErrUnauthenticated = errors.New("access denied, no token provided")
	// ErrTokenExpired возвращается, если срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid: подпись или формат токена не прошли проверку.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrForbidden возвращается, если у субъекта нет роли admin.
	ErrForbidden = errors.New("admin access required")
	// ErrInvalidCredentials не различает неизвестного пользователя и неверный пароль.
	// Намеренно одна ошибка для обоих случаев.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable — circuit breaker платёжного провайдера разомкнут.
	ErrProviderUnavailable = errors.New("payment provider temporarily unavailable")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError перечисляет все найденные проблемы входных данных.
// Ключ Fields — имя поля (для вложенных записей вида `skills[1].label`).
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError создаёт ошибку валидации с общим сообщением.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// Add добавляет проблему по полю.
func (e *ValidationError) Add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = problem
}

// HasProblems сообщает, найдена ли хотя бы одна проблема.
func (e *ValidationError) HasProblems() bool {
	return e != nil && len(e.Fields) > 0
}

// FieldNames возвращает отсортированный список полей с проблемами.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(e.FieldNames(), ", "))
}

// AuthorizationError описывает отказ в доступе.
// Forbidden различает 401 (нет или просрочен токен) и 403 (нет прав).
type AuthorizationError struct {
	Forbidden bool
	Err       error
}

func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return "authorization failed"
	}
	return e.Err.Error()
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// Unauthorized оборачивает ошибку аутентификации (401).
func Unauthorized(err error) error {
	return &AuthorizationError{Err: err}
}

// Forbidden оборачивает ошибку авторизации (403).
func Forbidden(err error) error {
	return &AuthorizationError{Forbidden: true, Err: err}
}

// StorageError оборачивает сбой хранилища. Текст драйвера не должен уходить клиенту.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError оборачивает ошибку драйвера с описанием операции.
func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PaymentProviderError описывает отказ внешнего платёжного провайдера.
// Name и Message сохраняют то, что вернул провайдер.
type PaymentProviderError struct {
	Op         string
	StatusCode int
	Name       string
	Message    string
	Timeout    bool
	Err        error
}

func (e *PaymentProviderError) Error() string {
	var b strings.Builder
	b.WriteString("payment provider ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Name != "" {
		b.WriteString(": ")
		b.WriteString(e.Name)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Name == "" && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PaymentProviderError) Unwrap() error { return e.Err }

// IsNotFound проверяет, является ли ошибка одной из ошибок "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVolunteerNotFound) ||
		errors.Is(err, ErrDonationNotFound) ||
		errors.Is(err, ErrAnimalNotFound) ||
		errors.Is(err, ErrAdoptionNotFound) ||
		errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrAdminNotFound)
}
