package qa

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the person asking for help.
	RoleUser Role = "user"
	// RoleAgent is a turn produced by the assistant.
	RoleAgent Role = "agent"
)

// Turn is a single conversation turn supplied by the caller, in request
// order. The service reads the list per request and never persists it.
type Turn struct {
	// Role is the author of the turn.
	Role Role
	// Content is the text of the turn.
	Content string
}

// LastUserQuestion returns the content of the most recent user-authored turn,
// which is the question to answer. ok is false when no user turn exists.
func LastUserQuestion(turns []Turn) (question string, ok bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content, true
		}
	}
	return "", false
}
