package roster

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			// crypto/rand only fails if the platform source is broken;
			// nothing sensible to do but stop.
			panic(err)
		}
		b[i] = base36[num.Int64()]
	}
	return string(b)
}

// NewShareID generates the public share identifier:
// share_{base36 timestamp}_{13 base36 chars}.
func NewShareID(now time.Time) string {
	return fmt.Sprintf("share_%s_%s", strconv.FormatInt(now.UnixMilli(), 36), randBase36(13))
}

// NewRosterID generates an authoring-side roster identifier.
func NewRosterID(now time.Time) string {
	return fmt.Sprintf("roster_%d_%s", now.UnixMilli(), randBase36(6))
}

// NewMID generates an alliance master identifier, retrying while exists
// reports a collision. The attempt counter is folded into the id so two
// retries in the same millisecond still differ.
func NewMID(now func() time.Time, exists func(string) (bool, error)) (string, error) {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ts := strconv.FormatInt(now().UnixMilli(), 36)
		mid := strings.ToUpper(fmt.Sprintf("MID_%s_%s_%s", ts, randBase36(8), strconv.FormatInt(int64(attempt), 36)))
		taken, err := exists(mid)
		if err != nil {
			return "", err
		}
		if !taken {
			return mid, nil
		}
	}
	// Collisions ten times in a row means the random source is suspect;
	// fall back to a longer id without checking.
	return strings.ToUpper(fmt.Sprintf("MID_%d_%s_%s", now().UnixMilli(), randBase36(11), randBase36(11))), nil
}
