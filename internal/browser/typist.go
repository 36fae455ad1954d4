// internal/browser/typist.go
package browser

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// commonNgrams are letter sequences a practiced typist produces faster than
// their baseline inter-key rhythm.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// typist produces human-shaped keystroke timing: normally distributed
// inter-key delays with n-gram acceleration, plus a per-key dwell time.
// Credential entry must be exact, so only timing is randomized; the typed
// text is never altered.
type typist struct {
	mu  sync.Mutex
	rng *rand.Rand

	// All in milliseconds.
	flightMean   float64
	flightStdDev float64
	flightMin    float64
	dwellMean    float64
	dwellStdDev  float64
}

func newTypist() *typist {
	return &typist{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		flightMean:   70.0,
		flightStdDev: 28.0,
		flightMin:    35.0,
		dwellMean:    55.0,
		dwellStdDev:  15.0,
	}
}

// keyDelay returns the pause before the key at index is pressed. Runs of
// common digrams and trigrams shorten it.
func (t *typist) keyDelay(runes []rune, index int) time.Duration {
	mean := t.flightMean
	min := t.flightMin
	factor := 1.0

	if index >= 2 && index < len(runes) {
		if commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
			factor = 0.55
		}
	}
	if factor == 1.0 && index >= 1 && index < len(runes) {
		if commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
			factor = 0.7
		}
	}

	mean *= factor
	min *= factor

	t.mu.Lock()
	delay := t.rng.NormFloat64()*t.flightStdDev + mean
	t.mu.Unlock()

	return time.Duration(math.Max(min, delay)) * time.Millisecond
}

// holdDelay returns the dwell time after a key is dispatched.
func (t *typist) holdDelay() time.Duration {
	t.mu.Lock()
	delay := t.rng.NormFloat64()*t.dwellStdDev + t.dwellMean
	t.mu.Unlock()

	if delay < 20.0 {
		delay = 20.0
	}
	return time.Duration(delay) * time.Millisecond
}
