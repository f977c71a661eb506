package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Account & Session errors
// 12000-12999: Packet & Configuration errors
// 13000-13999: Submission & Judge errors
// 14000-14999: Competition state errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Account & Session Errors (11000-11999) ==========

	InvalidCredentials    ErrorCode = 11000
	AccountNotFound       ErrorCode = 11001
	TokenExpired          ErrorCode = 11002
	TokenInvalid          ErrorCode = 11003
	TokenGenerationFailed ErrorCode = 11004

	// ========== Packet & Configuration Errors (12000-12999) ==========

	PacketInvalid        ErrorCode = 12000
	ProblemNotFound      ErrorCode = 12001
	LanguageNotSupported ErrorCode = 12002
	TestCaseInvalid      ErrorCode = 12003

	// ========== Submission & Judge Errors (13000-13999) ==========

	SubmissionNotFound  ErrorCode = 13000
	SubmissionInFlight  ErrorCode = 13001
	CodeTooLarge        ErrorCode = 13002
	AttemptsExhausted   ErrorCode = 13003
	JudgeQueueFull      ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	SandboxSpawnError   ErrorCode = 13102
	ScratchSpaceError   ErrorCode = 13103
	SubmissionCancelled ErrorCode = 13104
	HistoryWriteFailed  ErrorCode = 13105

	// ========== Competition State Errors (14000-14999) ==========

	CompetitionPaused   ErrorCode = 14000
	CompetitionFinished ErrorCode = 14001
	BroadcastFailed     ErrorCode = 14100
	HookScriptError     ErrorCode = 14200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	ValidationFailed: "Validation failed",

	InvalidCredentials:    "Invalid username or password",
	AccountNotFound:       "Account not found",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",

	PacketInvalid:        "Competition packet is invalid",
	ProblemNotFound:      "Problem not found",
	LanguageNotSupported: "Language is not supported",
	TestCaseInvalid:      "Test case definition is invalid",

	SubmissionNotFound:  "Submission not found",
	SubmissionInFlight:  "A submission for this problem is already being judged",
	CodeTooLarge:        "Source code is too large",
	AttemptsExhausted:   "No submission attempts remaining",
	JudgeQueueFull:      "Judge queue is full",
	JudgeSystemError:    "Judge system error",
	SandboxSpawnError:   "Failed to spawn sandboxed process",
	ScratchSpaceError:   "Failed to prepare scratch space",
	SubmissionCancelled: "Submission was cancelled",
	HistoryWriteFailed:  "Failed to write submission history",

	CompetitionPaused:   "Competition is paused",
	CompetitionFinished: "Competition has finished",
	BroadcastFailed:     "Failed to broadcast event",
	HookScriptError:     "Event hook script failed",
}

// Message returns the default message for an error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}
