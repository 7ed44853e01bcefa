package domain

import "errors"

var (
	// ErrWindowNotJoinable is returned when a join happens outside the enterable phase.
	ErrWindowNotJoinable = errors.New("competition is not accepting new participants")
	// ErrAlreadyAttempted is returned once the user reached a terminal state.
	ErrAlreadyAttempted = errors.New("competition already attempted; multiple attempts are not allowed")
	// ErrAlreadyActive is returned for a duplicate join; the existing session is kept.
	ErrAlreadyActive = errors.New("an active competition session already exists")
	// ErrNoActiveSession is returned when a mutating operation finds no active participation.
	ErrNoActiveSession = errors.New("no active competition session")
	// ErrEmptyAnswer is returned when the trimmed answer is empty.
	ErrEmptyAnswer = errors.New("answer cannot be empty")
	// ErrQuestionNotFound indicates a submitted question ID is not in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoParticipationFound is returned by results when the user never joined.
	ErrNoParticipationFound = errors.New("no competition results found")
	// ErrUnauthorized is returned when the caller lacks the required identity or role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorageFailure wraps every persistence-layer fault.
	ErrStorageFailure = errors.New("storage failure")

	// ErrSubmissionClosed is returned when the strict deadline policy rejects a late answer.
	ErrSubmissionClosed = errors.New("submission window has closed")
	// ErrConcurrentUpdate is returned when a participation changed underneath a write.
	ErrConcurrentUpdate = errors.New("participation was modified concurrently")
	// ErrInvalidActivity indicates an unknown activity type or malformed report.
	ErrInvalidActivity = errors.New("invalid activity report")
	// ErrInvalidWindow indicates a competition window configuration error.
	ErrInvalidWindow = errors.New("invalid competition window")
	// ErrQuestionBankEmpty indicates the question source returned nothing.
	ErrQuestionBankEmpty = errors.New("question bank is empty")
)
