package errs

import "errors"

var (
	ErrDestinationNotFound = errors.New("destination not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketExists        = errors.New("ticket already exists for this message")
	// ErrDirectUnknown — транспорт не знает, какие комнаты являются личными (нет m.direct).
	ErrDirectUnknown = errors.New("direct room registry unavailable")
)
