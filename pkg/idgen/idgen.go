package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"
)

// epoch is the sonyflake start time. Changing it breaks ordering against ids already stored.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator produces unique, roughly time-ordered ids for persisted rows
type Generator interface {
	NextID() (string, error)
}

// Sonyflake encodes sonyflake ids as decimal strings
type Sonyflake struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeGenerator creates a generator bound to machineId, which must be unique per running instance
func NewSonyflakeGenerator(machineId uint16) (*Sonyflake, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) { return machineId, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("create sonyflake: %w", err)
	}
	return &Sonyflake{sf: sf}, nil
}

func (g *Sonyflake) NextID() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("next sonyflake id: %w", err)
	}
	return strconv.FormatUint(id, 10), nil
}

type holder struct{ gen Generator }

var current atomic.Pointer[holder]

// SetDefaultGenerator replaces the process-wide generator. Passing nil restores the lazy default.
func SetDefaultGenerator(gen Generator) {
	if gen == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{gen: gen})
}

// NextID generates an id with the process-wide generator, creating a machine 1 sonyflake on first use
func NextID() (string, error) {
	h := current.Load()
	if h == nil {
		gen, err := NewSonyflakeGenerator(1)
		if err != nil {
			return "", err
		}
		h = &holder{gen: gen}
		if !current.CompareAndSwap(nil, h) {
			h = current.Load()
		}
	}
	return h.gen.NextID()
}

// NewConnId returns a random id for objects that live only in memory, such as socket connections
func NewConnId() string {
	return uuid.NewString()
}
