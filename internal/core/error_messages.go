package core

// # Error Codes Reference
//
// User-facing errors carry a code that can be quoted to support staff.
// Typed and sentinel errors are matched first (errors.Is / errors.As), then
// the message is matched against a pattern table for errors that only
// surface as text (driver and network failures).
//
// # Sheet Errors (SHEET001-SHEET099)
//
//	SHEET001 - Sheet not found: No sheet with that name exists
//	           Action: Check the sheet name; GET /api/sheets lists them
//	SHEET002 - Sheet exists: A sheet with that name already exists
//	           Action: Choose another name
//	SHEET003 - Unsupported: The configured store cannot do this
//	           Action: Use a store backend that supports the operation
//
// # Column and Operator Errors (COL001, OP001-OP099)
//
//	COL001 - Unknown column: A requested column is not in the header row
//	         Action: Check column names against the header row
//	OP001  - Unknown operator: A where-clause names an unsupported operator
//	         Action: Use one of the catalog operators
//	OP002  - Invalid operand: An operand has the wrong shape
//	         Action: between takes two numbers; includes/excludes/matchAny take lists
//
// # Cursor Errors (CUR001-CUR099)
//
//	CUR001 - Cursor not found: The cursor expired or was closed
//	         Action: Open a new cursor
//	CUR002 - Too many cursors: The server's cursor limit is reached
//	         Action: Close unused cursors and try again
//	CUR003 - System busy: Too many scans are running
//	         Action: Please wait a moment and try again
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: The request body failed validation
//	         Action: Fix the fields listed in the error details
//	REQ002 - Request cancelled
//	REQ003 - Request timeout
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Timeout
//	DB004 - Deadlock
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check application logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Details string // Technical detail safe to show (e.g. the unknown column names)
}

// ErrInvalidRequest marks a request that failed body validation.
var ErrInvalidRequest = errors.New("invalid request")

// errorKind matches errors by identity rather than text.
type errorKind struct {
	match func(error) bool
	msg   UserMessage
}

var errorKinds = []errorKind{
	{
		match: func(err error) bool { return errors.Is(err, sheet.ErrNotFound) },
		msg: UserMessage{
			Message: "Sheet not found",
			Action:  "Check the sheet name; GET /api/sheets lists them",
			Code:    "SHEET001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, sheet.ErrExists) },
		msg: UserMessage{
			Message: "A sheet with that name already exists",
			Action:  "Choose another name",
			Code:    "SHEET002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrUnsupported) },
		msg: UserMessage{
			Message: "The configured store does not support this operation",
			Action:  "Use a store backend that supports it",
			Code:    "SHEET003",
		},
	},
	{
		match: func(err error) bool {
			var uc *query.UnknownColumnError
			return errors.As(err, &uc)
		},
		msg: UserMessage{
			Message: "Unknown column",
			Action:  "Check column names against the header row",
			Code:    "COL001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, query.ErrUnknownOperator) },
		msg: UserMessage{
			Message: "Unknown operator",
			Action:  "Use one of: " + catalogList(),
			Code:    "OP001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, query.ErrInvalidOperand) },
		msg: UserMessage{
			Message: "Invalid operand",
			Action:  "between takes two numbers; includes, excludes and matchAny take lists; match takes a pattern",
			Code:    "OP002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrCursorNotFound) },
		msg: UserMessage{
			Message: "Cursor not found",
			Action:  "The cursor expired or was closed. Open a new one",
			Code:    "CUR001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyCursors) },
		msg: UserMessage{
			Message: "Too many open cursors",
			Action:  "Close unused cursors and try again",
			Code:    "CUR002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyScans) },
		msg: UserMessage{
			Message: "System busy",
			Action:  "Please wait a moment and try again",
			Code:    "CUR003",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrInvalidRequest) },
		msg: UserMessage{
			Message: "Invalid request",
			Action:  "Fix the fields listed in the error details",
			Code:    "REQ001",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, context.Canceled) },
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, context.DeadlineExceeded) },
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Narrow the where-clause or try again later",
			Code:    "REQ003",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(&query.UnknownColumnError{Columns: []string{"email"}})
//	// msg.Code == "COL001", msg.Details == "unknown column(s): email"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if k.match(err) {
			msg := k.msg
			msg.Details = err.Error()
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

func catalogList() string {
	ops := query.Catalog()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
