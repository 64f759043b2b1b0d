package errs

// Numeric error codes carried on the wire. The 13xx band is reserved for
// gateway business rules; anything unexpected collapses into
// ServerInternalError at the connection boundary.
const (
	ServerInternalError = 500

	ArgsError = 1001

	NotAMemberCode        = 1301
	RoomPrivateCode       = 1302
	MutedCode             = 1303
	BlockedCode           = 1304
	MessageNotFoundCode   = 1305
	EditWindowExpiredCode = 1306
	NotAuthorCode         = 1307
	InsufficientRoleCode  = 1308
	TargetUnavailableCode = 1309
	PersistenceCode       = 1310
)

var (
	ErrValidation        = NewCodeError(ArgsError, "validation failed")
	ErrNotAMember        = NewCodeError(NotAMemberCode, "not a member of this room")
	ErrRoomPrivate       = NewCodeError(RoomPrivateCode, "room is invite only")
	ErrMuted             = NewCodeError(MutedCode, "muted in this room")
	ErrBlocked           = NewCodeError(BlockedCode, "receiver has blocked the sender")
	ErrMessageNotFound   = NewCodeError(MessageNotFoundCode, "message not found")
	ErrEditWindowExpired = NewCodeError(EditWindowExpiredCode, "edit window expired")
	ErrNotAuthor         = NewCodeError(NotAuthorCode, "only the author may edit")
	ErrInsufficientRole  = NewCodeError(InsufficientRoleCode, "insufficient role")
	ErrTargetUnavailable = NewCodeError(TargetUnavailableCode, "target has no live connection")
	ErrPersistence       = NewCodeError(PersistenceCode, "persistence failure")
	ErrInternal          = NewCodeError(ServerInternalError, "internal error")
)

var codeNames = map[int]string{
	ArgsError:             "ValidationError",
	NotAMemberCode:        "NotAMember",
	RoomPrivateCode:       "RoomPrivate",
	MutedCode:             "Muted",
	BlockedCode:           "Blocked",
	MessageNotFoundCode:   "MessageNotFound",
	EditWindowExpiredCode: "EditWindowExpired",
	NotAuthorCode:         "NotAuthor",
	InsufficientRoleCode:  "InsufficientRole",
	TargetUnavailableCode: "TargetUnavailable",
	PersistenceCode:       "PersistenceFailure",
	ServerInternalError:   "InternalError",
}

// Name maps a numeric code to its wire-level symbolic name.
func Name(code int) string {
	if n, ok := codeNames[code]; ok {
		return n
	}
	return "InternalError"
}
