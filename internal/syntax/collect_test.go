package syntax

import (
	"strings"
	"testing"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
)

func TestCollectDropsTimedOutRule(t *testing.T) {
	t.Parallel()

	// The leading x matches at once; the run of a's then backtracks
	// exponentially and trips the timeout.
	re := regexp2.MustCompile(`x|(a+)+b`, regexp2.ECMAScript)
	re.MatchTimeout = 10 * time.Millisecond
	slow := rule{re: re, category: Keyword}

	code := "x x " + strings.Repeat("a", 40)
	runes := []rune(code)
	earlier := []match{{start: 0, end: 1, category: Comment}}

	got := slow.collect(runes, byteOffsets(code, len(runes)), earlier)
	assert.Equal(t, earlier, got)
}
