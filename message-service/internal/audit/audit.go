package audit

import (
	"context"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Audit actions for message-service.
const (
	ActionRegister          = "account.register"
	ActionLogin             = "account.login"
	ActionLoginFailed       = "account.login_failed"
	ActionRecall            = "message.recall"
	ActionBan               = "admin.ban"
	ActionUnban             = "admin.unban"
	ActionSetSensitiveWords = "admin.set_sensitive_words"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldTarget = "target"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, username string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUsername, username).
		Msg(msg)
}

// LogAdmin emits an audit entry for an action an admin took on target.
func LogAdmin(ctx context.Context, action string, admin string, target string, detail string, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUsername, admin)
	if target != "" {
		evt = evt.Str(FieldTarget, target)
	}
	if detail != "" {
		evt = evt.Str(FieldDetail, detail)
	}
	evt.Msg(msg)
}
