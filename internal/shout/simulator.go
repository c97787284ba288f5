package shout

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"shoutd/internal/faults"
)

// Fixed failure messages for the injected fault payloads.
const (
	ChickenMessage = "cannot shout about chickens"
	CornMessage    = "a corn kernel jammed the shouter"
)

// maxSimulatedSeconds caps the n*log(n) duration curve for long payloads.
const maxSimulatedSeconds = 60

// SimulatorConfig controls the simulated processor.
type SimulatorConfig struct {
	// CornFailureRate is the probability, per attempt, that a payload
	// containing "CORN" fails with a transient error.
	CornFailureRate float64
	// TimeScale is the real duration of one simulated work second.
	// Zero makes simulated work instantaneous (useful in tests).
	TimeScale float64
	// Rand is the injected failure source. Seeded from the clock when nil.
	// Owned by this simulator; never a process-global generator.
	Rand *rand.Rand
}

// Simulator shouts like Transformer but takes a deterministic amount of
// simulated time and injects classified failures for marker payloads. It
// exists to exercise every failure path of the shout loop and is swapped
// for Transformer in production use.
type Simulator struct {
	cornRate float64
	slice    time.Duration
	rng      *rand.Rand
	sleep    func(time.Duration)
}

// NewSimulator constructs a simulated processor.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	scale := cfg.TimeScale
	if scale < 0 {
		scale = 0
	}
	return &Simulator{
		cornRate: cfg.CornFailureRate,
		slice:    time.Duration(scale * float64(time.Second)),
		rng:      rng,
		sleep:    time.Sleep,
	}
}

// Process shouts text after length*log(length) simulated seconds, invoking
// the checkpoint once per simulated second.
//
// Marker payloads (matched against the shouted text):
//   - "CHICKEN": always fails fatally.
//   - "CORN": fails transiently with the configured probability.
//   - "COW": works until the checkpoint stops it, exhausting the deadline.
func (s *Simulator) Process(text string, checkpoint Checkpoint) (string, error) {
	if checkpoint == nil {
		checkpoint = func() error { return nil }
	}

	shouted := Upper(text)
	if err := checkpoint(); err != nil {
		return "", err
	}

	if strings.Contains(shouted, "CHICKEN") {
		return "", faults.Fatal("shout", ChickenMessage)
	}

	if strings.Contains(shouted, "COW") {
		for {
			if err := checkpoint(); err != nil {
				return "", err
			}
			s.sleep(s.slice)
		}
	}

	cornFails := strings.Contains(shouted, "CORN") && s.rng.Float64() < s.cornRate

	for i := 0; i < simulatedSeconds(len(text)); i++ {
		if err := checkpoint(); err != nil {
			return "", err
		}
		s.sleep(s.slice)
		if cornFails {
			return "", faults.Transient("shout", CornMessage, nil)
		}
	}
	if cornFails {
		return "", faults.Transient("shout", CornMessage, nil)
	}

	if err := checkpoint(); err != nil {
		return "", err
	}
	return shouted, nil
}

func simulatedSeconds(length int) int {
	if length < 2 {
		return 0
	}
	seconds := int(math.Round(float64(length) * math.Log(float64(length))))
	if seconds > maxSimulatedSeconds {
		return maxSimulatedSeconds
	}
	return seconds
}
