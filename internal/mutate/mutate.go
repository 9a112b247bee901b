// Package mutate runs user-initiated writes through local validation and a
// single in-flight submission.
package mutate

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"hypertension/internal/domain"
)

// ErrInFlight is returned when a submission for the same action is already
// running.
var ErrInFlight = errors.New("submission already in progress")

// State is the gateway's position in its lifecycle.
type State int32

const (
	Idle State = iota
	Validating
	Submitting
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	}
	return "idle"
}

// Gateway serializes one logical write action. The zero value is ready to
// use; a Gateway must not be copied after first use.
type Gateway struct {
	state atomic.Int32
}

// State reports the current lifecycle state.
func (g *Gateway) State() State { return State(g.state.Load()) }

// Run validates and then submits exactly once. submit is never called when
// validate fails. A call made while another is running returns ErrInFlight
// without side effects. The gateway is idle again when Run returns.
func (g *Gateway) Run(ctx context.Context, validate func() error, submit func(context.Context) error) error {
	if !g.state.CompareAndSwap(int32(Idle), int32(Validating)) {
		return ErrInFlight
	}
	defer g.state.Store(int32(Idle))

	if validate != nil {
		if err := validate(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.state.Store(int32(Submitting))
	return submit(ctx)
}

// Required rejects a blank value.
func Required(field, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", domain.Invalid(field, "is required")
	}
	return v, nil
}

// PositiveInt parses a required whole number greater than zero.
func PositiveInt(field, raw string) (int, error) {
	v, err := Required(field, raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.Invalid(field, "must be a whole number")
	}
	if n <= 0 {
		return 0, domain.Invalid(field, "must be greater than zero")
	}
	return n, nil
}

// PositiveFloat parses a required number greater than zero.
func PositiveFloat(field, raw string) (float64, error) {
	v, err := Required(field, raw)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !finite(f) {
		return 0, domain.Invalid(field, "must be a number")
	}
	if f <= 0 {
		return 0, domain.Invalid(field, "must be greater than zero")
	}
	return f, nil
}

// OptionalInt parses an optional target. Blank, unparseable and non-positive
// input yields nil, the explicit unset marker.
func OptionalInt(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// OptionalFloat is the float counterpart of OptionalInt.
func OptionalFloat(raw string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(f) || f <= 0 {
		return nil
	}
	return &f
}

// finite rejects the NaN and Inf spellings ParseFloat accepts.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
