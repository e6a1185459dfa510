// Package reward issues redeemable reward codes on quiz completion.
package reward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gdg-ntpu/welcomebot/internal/store"
)

// serialModulus bounds the 4-digit serial. Different user-key prefixes can
// collide on the same serial after wraparound; prefix variety keeps that
// rare and the event accepts it.
const serialModulus = 10000

// Counter is the single shared sequence the issuer draws from. The
// increment is atomic inside the store, so concurrent handlers never get
// the same serial.
type Counter interface {
	IncrementCounter(ctx context.Context, name string) (int64, error)
}

// Issuer derives reward codes from the user key and the shared counter.
type Issuer struct {
	counter Counter
	now     func() time.Time
}

// NewIssuer creates an issuer over the given counter store.
func NewIssuer(counter Counter) *Issuer {
	return &Issuer{counter: counter, now: time.Now}
}

// Issue returns a reward code for the hashed user key: its first three
// characters uppercased, then the zero-padded shared serial.
//
// When the counter store is unavailable the serial degrades to a
// time-derived value with a weaker collision guarantee; the code is still
// issued so the user is never left without one.
func (i *Issuer) Issue(ctx context.Context, userKey string) string {
	prefix := userKey
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	prefix = strings.ToUpper(prefix)

	serial, err := i.counter.IncrementCounter(ctx, store.CounterRewardCodes)
	if err != nil {
		serial = i.now().UnixMilli()
		slog.Warn("reward counter unavailable, using time-derived serial (degraded)", "error", err)
	}
	code := fmt.Sprintf("%s%04d", prefix, serial%serialModulus)
	slog.Debug("reward code issued", "prefix", prefix)
	return code
}
