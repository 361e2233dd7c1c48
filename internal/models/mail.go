package models

// Mail is a plain-text outbound email.
type Mail struct {
	To      string
	Subject string
	Body    string
}
