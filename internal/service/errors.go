package service

import "errors"

var (
	// ErrNotMember means the caller or a referenced member does not belong
	// to the group.
	ErrNotMember = errors.New("not a member of the group")

	// ErrPayerNotParticipant means the expense payer is missing from the
	// participant list.
	ErrPayerNotParticipant = errors.New("payer is not a participant")

	// ErrNotPayer means the caller is not the expense's payer.
	ErrNotPayer = errors.New("caller is not the expense payer")

	// ErrInvalidInput covers request validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxExpenseNoteLength caps the optional expense note.
const MaxExpenseNoteLength = 100
