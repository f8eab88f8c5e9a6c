package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния
	// (недопустимый переход статуса, ответ в завершенную попытку и т.п.).
	ErrConflict = errors.New("resource state conflict")

	// ErrUnavailable: нет контента для генерации (пустой пул вопросов).
	// Отличается от ErrNotFound, чтобы клиент мог показать "нет вопросов".
	ErrUnavailable = errors.New("no content available")

	// ErrIntegrity: повреждённые данные при проверке ответа (например, перестановка).
	ErrIntegrity = errors.New("data integrity violation")
)
