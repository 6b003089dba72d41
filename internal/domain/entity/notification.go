package entity

// NoticeLevel is the severity of a user-visible notification.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notification is a toast-style message for one session.
type Notification struct {
	SessionID int64       `json:"-"`
	Level     NoticeLevel `json:"level"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
}
