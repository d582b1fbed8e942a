// Package storage holds the key-value backends a shopper's cart slot is
// written to. Each backend stores opaque bytes; Slot does the cart encoding.
package storage

import (
	"context"
	"errors"
	"strings"

	"printstore/internal/domain"
)

// ErrSlotEmpty is returned by Backend.Read when nothing is stored at key.
var ErrSlotEmpty = errors.New("slot empty")

// Backend is a durable key-value store with last-writer-wins semantics.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

const keyPrefix = "cart:"

// SlotKey names the slot that holds sessionID's cart.
func SlotKey(sessionID string) string {
	return keyPrefix + strings.TrimSpace(sessionID)
}

// Slot persists one cart under a fixed key.
type Slot struct {
	backend Backend
	key     string
}

func NewSlot(backend Backend, key string) *Slot {
	return &Slot{backend: backend, key: key}
}

func (s *Slot) Key() string { return s.key }

// Load returns (nil, nil) for an empty slot and wraps domain.ErrCorruptCartState
// when the stored bytes cannot be decoded.
func (s *Slot) Load(ctx context.Context) (*domain.CartState, error) {
	raw, err := s.backend.Read(ctx, s.key)
	if errors.Is(err, ErrSlotEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state, err := domain.DecodeCartState(raw)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Slot) Save(ctx context.Context, state domain.CartState) error {
	raw, err := domain.EncodeCartState(state)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, s.key, raw)
}

// Clear removes the slot entirely.
func (s *Slot) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, s.key)
}

// Slots hands out per-session slots over one backend.
type Slots struct {
	backend Backend
}

func NewSlots(backend Backend) *Slots {
	return &Slots{backend: backend}
}

func (s *Slots) Slot(sessionID string) *Slot {
	return NewSlot(s.backend, SlotKey(sessionID))
}
