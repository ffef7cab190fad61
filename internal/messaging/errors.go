package messaging

import "errors"

// Error kinds surfaced by the messaging core. Callers match them with
// errors.Is; Kind turns them into stable machine-readable names.
var (
	ErrNotAParticipant    = errors.New("not an active participant")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyMember      = errors.New("already a member")
	ErrInvalidSelfRemoval = errors.New("cannot remove yourself, leave instead")
	ErrNotFound           = errors.New("not found")
	ErrCreationFailed     = errors.New("conversation creation failed")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrMessageTooLong     = errors.New("message is too long")
	ErrNotGroup           = errors.New("conversation is not a group")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("store call timed out")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrTimeout, "TIMEOUT"},
	{ErrNotAParticipant, "NOT_A_PARTICIPANT"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrAlreadyMember, "ALREADY_MEMBER"},
	{ErrInvalidSelfRemoval, "INVALID_SELF_REMOVAL"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrCreationFailed, "CREATION_FAILED"},
	{ErrEmptyMessage, "EMPTY_MESSAGE"},
	{ErrMessageTooLong, "MESSAGE_TOO_LONG"},
	{ErrNotGroup, "NOT_GROUP"},
	{ErrInvalidInput, "INVALID_INPUT"},
}

// Kind returns the machine-readable kind of err: "" for nil, "INTERNAL" for
// anything outside the taxonomy. A timeout wins over the kind it wraps.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "INTERNAL"
}
