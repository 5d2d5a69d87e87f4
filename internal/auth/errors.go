package auth

import "errors"

// Коды ошибок провайдера идентичности в нотации auth/<причина>.
const (
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodePopupClosedByUser = "auth/popup-closed-by-user"
	CodePopupBlocked      = "auth/popup-blocked"
)

// CodeError ошибка провайдера идентичности с машинным кодом.
type CodeError struct {
	Code string
}

func (e *CodeError) Error() string { return e.Code }

// NewCodeError создает ошибку с заданным кодом.
func NewCodeError(code string) error {
	return &CodeError{Code: code}
}

var friendlyMessages = map[string]string{
	CodeUserNotFound:      "No account found with this email",
	CodeWrongPassword:     "Incorrect password",
	CodeEmailInUse:        "Email is already registered",
	CodeWeakPassword:      "Password is too weak",
	CodeInvalidEmail:      "Invalid email address",
	CodePopupClosedByUser: "Authentication cancelled",
	CodePopupBlocked:      "Popup blocked. Please allow popups and try again",
}

// FriendlyMessage переводит ошибку провайдера в сообщение для пользователя.
// Для ошибок без известного кода возвращается исходный текст ошибки.
func FriendlyMessage(err error) string {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		if msg, ok := friendlyMessages[codeErr.Code]; ok {
			return msg
		}
	}
	return err.Error()
}
