package secret

import "errors"

var (
	ErrEmptyCatalog         = errors.New("item catalog is empty")
	ErrInvalidItem          = errors.New("catalog item must have a word")
	ErrTooFewParticipants   = errors.New("at least two participants are required")
	ErrInvalidImpostorCount = errors.New("impostor count must be at least one")
)
