package types

// NoticeKind distinguishes the user-facing message kinds.
type NoticeKind string

const (
	NoticeNone    NoticeKind = ""
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
)

// Notice is the single current message of a component: one error or one
// success, never both.
type Notice struct {
	Kind    NoticeKind `json:"kind,omitempty"`
	Message string     `json:"message,omitempty"`
}

func ErrorNotice(message string) Notice {
	return Notice{Kind: NoticeError, Message: message}
}

func SuccessNotice(message string) Notice {
	return Notice{Kind: NoticeSuccess, Message: message}
}

func (n Notice) IsZero() bool {
	return n.Kind == NoticeNone
}

// Error returns the message when the notice is an error.
func (n Notice) Error() string {
	if n.Kind != NoticeError {
		return ""
	}
	return n.Message
}

// Success returns the message when the notice is a success.
func (n Notice) Success() string {
	if n.Kind != NoticeSuccess {
		return ""
	}
	return n.Message
}
