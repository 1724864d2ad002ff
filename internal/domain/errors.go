package domain

import "errors"

var (
	ErrNotFound                = errors.New("conversation not found")
	ErrConversationClosed      = errors.New("conversation is done")
	ErrAlreadyAssigned         = errors.New("conversation already assigned")
	ErrOrderedQueryUnavailable = errors.New("ordered message query unavailable")
	ErrStaffNotFound           = errors.New("staff not found")
)
