package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/diarisk/internal/domain/model"
	"github.com/okian/diarisk/internal/domain/types"
)

// Kind is a synthetic profile family.
type Kind string

// Profile kinds.
const (
	KindLow        Kind = "low"
	KindMedium     Kind = "medium"
	KindHigh       Kind = "high"
	KindDegenerate Kind = "degenerate"
)

var kinds = []Kind{KindLow, KindMedium, KindHigh, KindDegenerate}

// Mix weights the profile kinds. Weights are relative.
type Mix map[Kind]int

// DefaultMix favors realistic profiles and keeps a few degenerate ones.
func DefaultMix() Mix {
	return Mix{KindLow: 4, KindMedium: 3, KindHigh: 2, KindDegenerate: 1}
}

// ParseMix reads "low=4,medium=3,high=2,degenerate=1". Omitted kinds get zero.
func ParseMix(s string) (Mix, error) {
	m := Mix{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: mix entry %q is not kind=weight", ErrInvalidConfig, part)
		}
		kind := Kind(strings.ToLower(strings.TrimSpace(k)))
		if !kind.valid() {
			return nil, fmt.Errorf("%w: unknown profile kind %q", ErrInvalidConfig, k)
		}
		w, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || w < 0 {
			return nil, fmt.Errorf("%w: bad weight for %s", ErrInvalidConfig, kind)
		}
		m[kind] = w
	}
	if m.total() <= 0 {
		return nil, fmt.Errorf("%w: profile mix must have a positive weight", ErrInvalidConfig)
	}
	return m, nil
}

func (k Kind) valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (m Mix) total() int {
	t := 0
	for _, k := range kinds {
		if m[k] > 0 {
			t += m[k]
		}
	}
	return t
}

// pick draws a kind according to the weights.
func (m Mix) pick(r *rand.Rand) Kind {
	n := r.IntN(m.total())
	for _, k := range kinds {
		if m[k] <= 0 {
			continue
		}
		if n < m[k] {
			return k
		}
		n -= m[k]
	}
	return KindLow
}

// Submission is one generated request.
type Submission struct {
	UserID         string                  `json:"userId"`
	IdempotencyKey string                  `json:"idempotencyKey"`
	Kind           Kind                    `json:"kind"`
	Request        types.AssessmentRequest `json:"request"`
}

// Generator produces synthetic users and profiles.
type Generator struct {
	rnd *rand.Rand
	mix Mix
}

// NewGenerator returns a generator seeded with seed. A zero seed is replaced
// by the current time.
func NewGenerator(seed uint64, mix Mix) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if mix.total() <= 0 {
		mix = DefaultMix()
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), mix: mix}
}

// Generate creates perUser submissions for each of users fresh user ids.
func (g *Generator) Generate(users, perUser int) []Submission {
	out := make([]Submission, 0, users*perUser)
	for u := 0; u < users; u++ {
		userID := uuid.NewString()
		for i := 0; i < perUser; i++ {
			kind := g.mix.pick(g.rnd)
			out = append(out, Submission{
				UserID:         userID,
				IdempotencyKey: uuid.NewString(),
				Kind:           kind,
				Request: types.AssessmentRequest{
					PatientName:   fmt.Sprintf("patient-%d-%d", u, i),
					HealthMetrics: g.Profile(kind),
				},
			})
		}
	}
	return out
}

// Profile draws metrics for one kind.
func (g *Generator) Profile(kind Kind) model.HealthMetrics {
	switch kind {
	case KindHigh:
		return model.HealthMetrics{
			Age:                      g.between(55, 80),
			BMI:                      g.between(33, 45),
			Glucose:                  g.between(160, 230),
			BloodPressure:            g.between(90, 110),
			DiabetesPedigreeFunction: g.between(0.8, 1.6),
			SleepHours:               g.between(4, 5.5),
		}
	case KindMedium:
		return model.HealthMetrics{
			Age:           g.between(40, 60),
			BMI:           g.between(27, 33),
			Glucose:       g.between(110, 140),
			BloodPressure: g.between(80, 90),
			Pregnancies:   g.between(0, 4),
		}
	case KindDegenerate:
		m := g.Profile(KindMedium)
		// Drop or zero one mandatory field.
		switch g.rnd.IntN(4) {
		case 0:
			m.Age = nil
		case 1:
			m.BMI = model.Float(0)
		case 2:
			m.Glucose = nil
		default:
			m.BloodPressure = model.Float(0)
		}
		return m
	default:
		return model.HealthMetrics{
			Age:           g.between(20, 35),
			BMI:           g.between(19, 24),
			Glucose:       g.between(75, 95),
			BloodPressure: g.between(60, 75),
			SleepHours:    g.between(7, 8.5),
		}
	}
}

// between returns a value in [lo, hi) rounded to one decimal.
func (g *Generator) between(lo, hi float64) *float64 {
	v := lo + g.rnd.Float64()*(hi-lo)
	return model.Float(math.Round(v*10) / 10)
}
