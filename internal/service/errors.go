// Package service provides business logic implementations.
package service

import (
	"errors"

	"voice-room/internal/roomstate"
)

// Common errors for room economy operations.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWriteFailure      = errors.New("durable write failed")
	ErrNoRecipients      = errors.New("no recipients selected")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownGift       = errors.New("unknown gift")
	ErrSelfGift          = errors.New("cannot send a gift to yourself")
	ErrUnknownRecipient  = errors.New("recipient has no wallet")
	ErrInvalidBag        = errors.New("invalid lucky bag: total must cover every recipient")
	ErrBagNotFound       = errors.New("lucky bag not found")
	ErrBagExhausted      = errors.New("lucky bag exhausted or expired")
	ErrAlreadyClaimed    = errors.New("lucky bag already claimed")
	ErrNotInRoom         = errors.New("user has not joined the room")
	ErrEmptyMessage      = errors.New("message is empty")
)

// Room errors are shared with the room state layer so callers can match
// either package's sentinel.
var (
	ErrPermissionDenied = roomstate.ErrPermissionDenied
	ErrRoomNotFound     = roomstate.ErrRoomNotFound
)
