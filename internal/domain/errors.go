package domain

import "errors"

var (
	// ErrDuplicateCode is returned when a session code is already taken (codes are case-insensitive).
	ErrDuplicateCode = errors.New("session code already in use")
	// ErrSessionNotFound is returned when no session matches the id or code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned to join/respond paths once a session has ended.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSessionEnded is returned to management mutations once a session has ended.
	ErrSessionEnded = errors.New("session has ended")
	// ErrQuestionNotFound indicates the question was never broadcast in this session (or is unknown to the bank).
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUnauthorized is returned when the caller does not own the session or lacks the role.
	ErrUnauthorized = errors.New("caller is not allowed to perform this action")
	// ErrInvalidAnswerShape marks an answer the comparator cannot normalize; it scores as incorrect.
	ErrInvalidAnswerShape = errors.New("answer cannot be normalized")
	// ErrLedgerWriteSkipped is logged when a result has no resolvable enrolled student.
	ErrLedgerWriteSkipped = errors.New("ledger write skipped")
	// ErrParticipantNotFound is returned when a participant id is unknown to the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrParticipantKicked is returned when a kicked participant tries to act again.
	ErrParticipantKicked = errors.New("participant was removed from session")
	// ErrNoActiveQuestion is returned by timer operations when nothing is live.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrInvalidRequest wraps caller input that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound is a generic miss for ledger/settings lookups.
	ErrNotFound = errors.New("not found")
)
