package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypistKeyDelay(t *testing.T) {
	ty := newTypist()

	t.Run("never drops below the minimum flight time", func(t *testing.T) {
		runes := []rune("zq9!kX")
		for i := range runes {
			for n := 0; n < 200; n++ {
				d := ty.keyDelay(runes, i)
				assert.GreaterOrEqual(t, d, time.Duration(ty.flightMin)*time.Millisecond)
			}
		}
	})

	t.Run("common ngrams are faster on average", func(t *testing.T) {
		const samples = 500
		rare := []rune("xq")
		common := []rune("the")

		var rareSum, commonSum time.Duration
		for n := 0; n < samples; n++ {
			rareSum += ty.keyDelay(rare, 1)
			// Index 2 completes the "the" trigram.
			commonSum += ty.keyDelay(common, 2)
		}
		assert.Less(t, commonSum/samples, rareSum/samples,
			"a practiced trigram should beat an awkward digram")
	})

	t.Run("delays vary between keystrokes", func(t *testing.T) {
		runes := []rune("password")
		seen := map[time.Duration]bool{}
		for n := 0; n < 50; n++ {
			seen[ty.keyDelay(runes, 3)] = true
		}
		assert.Greater(t, len(seen), 1, "cadence must not be a fixed interval")
	})
}

func TestTypistHoldDelay(t *testing.T) {
	ty := newTypist()
	for n := 0; n < 200; n++ {
		assert.GreaterOrEqual(t, ty.holdDelay(), 20*time.Millisecond)
	}
}
