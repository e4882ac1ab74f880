package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys shared across packages.
const (
	KeyComponent   = "component"
	KeyOperation   = "operation"
	KeyAccount     = "account"
	KeyAccountHash = "account_hash"
	KeyCalendar    = "calendar"
	KeyTool        = "tool"
	KeyStatus      = "status"
	KeyError       = "error"
	KeyAttempt     = "attempt"
	KeyTaskID      = "task_id"
	KeyBatchID     = "batch_id"
)

// Status values. Duplicated from instrumentation, which imports this package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Format names accepted by NewHandler.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandler returns a slog handler writing to w in the given format.
// Unknown formats fall back to text.
func NewHandler(w io.Writer, format string, debug bool) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String(KeyComponent, component))
}

// WithTool returns a logger tagged with the tool name.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
func Calendar(id string) slog.Attr { return slog.String(KeyCalendar, id) }
func Tool(tool string) slog.Attr { return slog.String(KeyTool, tool) }
func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
func TaskID(id string) slog.Attr { return slog.String(KeyTaskID, id) }
func BatchID(id string) slog.Attr { return slog.String(KeyBatchID, id) }
func Account(account string) slog.Attr { return slog.String(KeyAccount, account) }

// Err returns an error attribute. A nil error yields an empty group, which
// slog omits, so Err(maybeNil) is always safe.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeAccount hashes an account identifier for logging. Accounts named
// "default" or without an @ are returned unchanged since they carry no PII.
func AnonymizeAccount(account string) string {
	if account == "" || !strings.Contains(account, "@") {
		return account
	}
	hash := sha256.Sum256([]byte(account))
	return "acct:" + hex.EncodeToString(hash[:8])
}

// AccountHash returns an attribute with the anonymized account identifier.
func AccountHash(account string) slog.Attr {
	return slog.String(KeyAccountHash, AnonymizeAccount(account))
}

// AccountDomain returns the domain part of an email-style account, or ""
// when the identifier is not an address.
func AccountDomain(account string) string {
	at := strings.LastIndex(account, "@")
	if at <= 0 || at == len(account)-1 {
		return ""
	}
	return account[at+1:]
}
