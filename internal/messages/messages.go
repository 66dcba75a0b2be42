// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package messages renders player-facing replies from keys and arguments.
//
// Every key has an English and a Russian translation registered in a
// golang.org/x/text catalog. Unknown languages fall back to English.
package messages

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Reply is a message key plus the arguments its format expects.
type Reply struct {
	Key  string
	Args []any
}

// New builds a Reply.
func New(key string, args ...any) Reply {
	return Reply{Key: key, Args: args}
}

// Reply keys.
const (
	WelcomeRegister      = "welcome.register"
	WelcomeLogin         = "welcome.login"
	SessionRestored      = "session.restored"
	LoginSuccess         = "login.success"
	LoginUsage           = "login.usage"
	LoginFailed          = "login.failed"
	AccountLocked        = "login.locked"
	CaptchaRequired      = "captcha.required"
	CaptchaUsage         = "captcha.usage"
	CaptchaSolved        = "captcha.solved"
	CaptchaWrong         = "captcha.wrong"
	CaptchaNone          = "captcha.none"
	RegisterSuccess      = "register.success"
	RegisterUsage        = "register.usage"
	RegistrationDisabled = "register.disabled"
	AlreadyRegistered    = "register.already"
	RegistrationRequired = "register.required"
	InvalidDisplayName   = "register.invalid_name"
	AlreadyAuthenticated = "auth.already"
	NotAuthenticated     = "auth.not_logged_in"
	PasswordTooShort     = "password.too_short"
	PasswordTooLong      = "password.too_long"
	PasswordMismatch     = "password.mismatch"
	PasswordWeak         = "password.weak"
	WrongPassword        = "password.wrong"
	SamePassword         = "password.same"
	PasswordChanged      = "password.changed"
	ChangePasswordUsage  = "password.change_usage"
	LoggedOut            = "logout.success"
	ActionBlocked        = "gate.blocked"
	UnknownCommand       = "command.unknown"
	PermissionDenied     = "command.permission_denied"
	Throttled            = "command.throttled"
	NotImplemented       = "command.not_implemented"
	ServerError          = "server.error"
	Help                 = "help.list"
	AdminHelp            = "admin.help"
	AdminReloaded        = "admin.reloaded"
	AdminReloadFailed    = "admin.reload_failed"
	AdminStats           = "admin.stats"
	AdminCleanup         = "admin.cleanup"
)

// Requirement keys, one per unmet strength criterion.
const requirementPrefix = "requirement."

// RequirementKey returns the key that describes a strength requirement name.
func RequirementKey(name string) string {
	return requirementPrefix + name
}

var translations = map[language.Tag]map[string]string{
	language.English: {
		WelcomeRegister:      "Welcome, %s! Register with: register <password> <password>",
		WelcomeLogin:         "Welcome back, %s! Log in with: login <password>",
		SessionRestored:      "Session restored. Welcome back, %s!",
		LoginSuccess:         "You are logged in.",
		LoginUsage:           "Usage: login <password>",
		LoginFailed:          "Wrong password. Attempts left: %d",
		AccountLocked:        "Too many failed attempts. Try again in %s.",
		CaptchaRequired:      "Too many failed attempts. Type: captcha %s",
		CaptchaUsage:         "Usage: captcha <code>",
		CaptchaSolved:        "Code accepted. You may try to log in again.",
		CaptchaWrong:         "Wrong code. Try again.",
		CaptchaNone:          "There is no code to enter.",
		RegisterSuccess:      "Registration complete. You are logged in.",
		RegisterUsage:        "Usage: register <password> <password>",
		RegistrationDisabled: "Registration is disabled on this server.",
		AlreadyRegistered:    "You are already registered. Use: login <password>",
		RegistrationRequired: "You are not registered. Use: register <password> <password>",
		InvalidDisplayName:   "Your name cannot be registered.",
		AlreadyAuthenticated: "You are already logged in.",
		NotAuthenticated:     "You are not logged in.",
		PasswordTooShort:     "The password is too short. Minimum length: %d",
		PasswordTooLong:      "The password is too long. Maximum length: %d",
		PasswordMismatch:     "The passwords do not match.",
		PasswordWeak:         "The password is too weak. It needs: %s",
		WrongPassword:        "Wrong password.",
		SamePassword:         "The new password must differ from the old one.",
		PasswordChanged:      "Password changed. Other sessions were signed out.",
		ChangePasswordUsage:  "Usage: changepassword <old password> <new password>",
		LoggedOut:            "You have logged out.",
		ActionBlocked:        "You must log in first.",
		UnknownCommand:       "Unknown command: %s",
		PermissionDenied:     "You do not have permission to do that.",
		Throttled:            "Too many attempts. Wait %d seconds.",
		NotImplemented:       "This command is not implemented yet.",
		ServerError:          "A server error occurred. Try again later.",
		Help:                 "Commands: login, register, logout, changepassword, captcha, help",
		AdminHelp:            "Admin commands: reload, stats, cleanup, info, unregister, forcelogin, resetpassword",
		AdminReloaded:        "Configuration reloaded.",
		AdminReloadFailed:    "Reload failed: %s",
		AdminStats:           "Logged in: %d, registered: %d, active sessions: %d",
		AdminCleanup:         "Removed %d expired sessions.",

		RequirementKey("length"):             "enough characters",
		RequirementKey("lowercase"):          "a lowercase letter",
		RequirementKey("uppercase"):          "an uppercase letter",
		RequirementKey("digit"):              "a digit",
		RequirementKey("special"):            "a special character",
		RequirementKey("no_common_patterns"): "no common patterns",
	},
	language.Russian: {
		WelcomeRegister:      "Добро пожаловать, %s! Зарегистрируйтесь: register <пароль> <пароль>",
		WelcomeLogin:         "С возвращением, %s! Войдите: login <пароль>",
		SessionRestored:      "Сессия восстановлена. С возвращением, %s!",
		LoginSuccess:         "Вы успешно вошли.",
		LoginUsage:           "Использование: login <пароль>",
		LoginFailed:          "Неверный пароль. Осталось попыток: %d",
		AccountLocked:        "Слишком много неудачных попыток. Повторите через %s.",
		CaptchaRequired:      "Слишком много неудачных попыток. Введите: captcha %s",
		CaptchaUsage:         "Использование: captcha <код>",
		CaptchaSolved:        "Код принят. Попробуйте войти снова.",
		CaptchaWrong:         "Неверный код. Попробуйте ещё раз.",
		CaptchaNone:          "Вам не нужно вводить код.",
		RegisterSuccess:      "Регистрация завершена. Вы вошли.",
		RegisterUsage:        "Использование: register <пароль> <пароль>",
		RegistrationDisabled: "Регистрация на сервере отключена.",
		AlreadyRegistered:    "Вы уже зарегистрированы. Используйте: login <пароль>",
		RegistrationRequired: "Вы не зарегистрированы. Используйте: register <пароль> <пароль>",
		InvalidDisplayName:   "Это имя нельзя зарегистрировать.",
		AlreadyAuthenticated: "Вы уже вошли.",
		NotAuthenticated:     "Вы не вошли.",
		PasswordTooShort:     "Пароль слишком короткий. Минимальная длина: %d",
		PasswordTooLong:      "Пароль слишком длинный. Максимальная длина: %d",
		PasswordMismatch:     "Пароли не совпадают.",
		PasswordWeak:         "Пароль слишком слабый. Нужно: %s",
		WrongPassword:        "Неверный пароль.",
		SamePassword:         "Новый пароль должен отличаться от старого.",
		PasswordChanged:      "Пароль изменён. Другие сессии завершены.",
		ChangePasswordUsage:  "Использование: changepassword <старый пароль> <новый пароль>",
		LoggedOut:            "Вы вышли из аккаунта.",
		ActionBlocked:        "Сначала войдите в аккаунт.",
		UnknownCommand:       "Неизвестная команда: %s",
		PermissionDenied:     "У вас недостаточно прав для использования этой команды!",
		Throttled:            "Слишком много попыток. Подождите %d сек.",
		NotImplemented:       "Эта команда пока не реализована.",
		ServerError:          "Ошибка сервера. Попробуйте позже.",
		Help:                 "Команды: login, register, logout, changepassword, captcha, help",
		AdminHelp:            "Команды администратора: reload, stats, cleanup, info, unregister, forcelogin, resetpassword",
		AdminReloaded:        "Конфигурация перезагружена.",
		AdminReloadFailed:    "Не удалось перезагрузить: %s",
		AdminStats:           "В сети авторизовано: %d, зарегистрировано: %d, активных сессий: %d",
		AdminCleanup:         "Удалено устаревших сессий: %d.",

		RequirementKey("length"):             "достаточная длина",
		RequirementKey("lowercase"):          "строчная буква",
		RequirementKey("uppercase"):          "заглавная буква",
		RequirementKey("digit"):              "цифра",
		RequirementKey("special"):            "специальный символ",
		RequirementKey("no_common_patterns"): "без простых последовательностей",
	},
}

// Keys returns every reply key known to the English catalog.
func Keys() []string {
	keys := make([]string, 0, len(translations[language.English]))
	for key := range translations[language.English] {
		keys = append(keys, key)
	}
	return keys
}

// Supported lists the languages with a full catalog.
func Supported() []language.Tag {
	return []language.Tag{language.English, language.Russian}
}

// Renderer turns replies into text in one language.
type Renderer struct {
	printer *message.Printer
	tag     language.Tag
}

// NewRenderer creates a Renderer for lang, a BCP 47 tag such as "en" or "ru".
// Unknown or unsupported tags render in English.
func NewRenderer(lang string) *Renderer {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, entries := range translations {
		for key, text := range entries {
			_ = builder.SetString(tag, key, text) //nolint:errcheck // SetString only fails on invalid tags
		}
	}

	requested, err := language.Parse(lang)
	if err != nil {
		requested = language.English
	}
	matcher := language.NewMatcher(Supported())
	_, index, _ := matcher.Match(requested)
	tag := Supported()[index]

	return &Renderer{
		printer: message.NewPrinter(tag, message.Catalog(builder)),
		tag:     tag,
	}
}

// Language returns the tag the renderer writes in.
func (r *Renderer) Language() language.Tag {
	return r.tag
}

// Requirements is a reply argument holding strength requirement names.
// It renders as a translated, comma separated phrase.
type Requirements []string

// Render formats a reply.
func (r *Renderer) Render(reply Reply) string {
	args := make([]any, len(reply.Args))
	for i, arg := range reply.Args {
		if req, ok := arg.(Requirements); ok {
			arg = r.Requirements(req)
		}
		args[i] = arg
	}
	return r.printer.Sprintf(reply.Key, args...)
}

// Requirements renders strength requirement names as one comma separated phrase.
func (r *Renderer) Requirements(names []string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, r.printer.Sprintf(RequirementKey(name)))
	}
	return strings.Join(parts, ", ")
}
