package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avela/coursegate/internal/fingerprint"
)

func baseSignals() fingerprint.Signals {
	return fingerprint.Signals{
		ScreenWidth:  2560,
		ScreenHeight: 1440,
		ColorDepth:   24,
		Language:     "en-US",
		CPUCount:     8,
		Timezone:     "Europe/Berlin",
		Platform:     "MacIntel",
		UserAgent:    "Mozilla/5.0 (Macintosh) TestBrowser/1.0",
	}
}

func TestHashDeterministic(t *testing.T) {
	a := fingerprint.Hash(baseSignals())
	b := fingerprint.Hash(baseSignals())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.False(t, fingerprint.IsProvisional(a))
}

func TestHashSensitiveToEachSignal(t *testing.T) {
	base := fingerprint.Hash(baseSignals())

	s := baseSignals()
	s.Timezone = "America/Chicago"
	assert.NotEqual(t, base, fingerprint.Hash(s))

	s = baseSignals()
	s.CPUCount = 4
	assert.NotEqual(t, base, fingerprint.Hash(s))
}

func TestProvisionalForm(t *testing.T) {
	fp := fingerprint.Provisional("203.0.113.7")
	assert.True(t, fingerprint.IsProvisional(fp))
	assert.Equal(t, fp, fingerprint.Provisional("203.0.113.7"))
	assert.NotEqual(t, fp, fingerprint.Provisional("203.0.113.8"))
}
