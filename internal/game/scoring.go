// Package game implements the true/false session engine: scoring, question
// ordering, and the session state machine.
package game

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultBaseScore is the points awarded for a correct answer before the streak multiplier.
const DefaultBaseScore = 10

// Tier maps a minimum streak length to a score multiplier.
type Tier struct {
	MinStreak  int
	Multiplier float64
}

// DefaultTiers is the streak tier table used when nothing else is configured.
var DefaultTiers = []Tier{
	{MinStreak: 3, Multiplier: 1.2},
	{MinStreak: 6, Multiplier: 1.5},
	{MinStreak: 10, Multiplier: 2.0},
}

// Policy holds the scoring constants. The zero value is not usable; use DefaultPolicy or NewPolicy.
type Policy struct {
	BaseScore int
	// Tiers is sorted by MinStreak ascending.
	Tiers []Tier
}

// DefaultPolicy returns the stock scoring policy.
func DefaultPolicy() Policy {
	return Policy{BaseScore: DefaultBaseScore, Tiers: append([]Tier(nil), DefaultTiers...)}
}

// NewPolicy validates and normalizes a scoring policy.
// Multipliers must be at least 1.0 and non-decreasing as the streak grows.
func NewPolicy(baseScore int, tiers []Tier) (Policy, error) {
	if baseScore <= 0 {
		return Policy{}, fmt.Errorf("base score must be > 0, got %d", baseScore)
	}
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinStreak < sorted[j].MinStreak })

	prev := 1.0
	for i, t := range sorted {
		if t.MinStreak <= 0 {
			return Policy{}, fmt.Errorf("tier %d: min streak must be > 0, got %d", i, t.MinStreak)
		}
		if i > 0 && t.MinStreak == sorted[i-1].MinStreak {
			return Policy{}, fmt.Errorf("duplicate tier for streak %d", t.MinStreak)
		}
		if t.Multiplier < prev {
			return Policy{}, fmt.Errorf("tier %d: multiplier %.2f is below the previous tier %.2f", t.MinStreak, t.Multiplier, prev)
		}
		prev = t.Multiplier
	}
	return Policy{BaseScore: baseScore, Tiers: sorted}, nil
}

// ParseTiers parses a tier table written as "3:1.2,6:1.5,10:2.0".
func ParseTiers(s string) ([]Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		streakStr, multStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("tier %q: expected <streak>:<multiplier>", part)
		}
		streak, err := strconv.Atoi(strings.TrimSpace(streakStr))
		if err != nil {
			return nil, fmt.Errorf("tier %q: parse streak: %w", part, err)
		}
		mult, err := strconv.ParseFloat(strings.TrimSpace(multStr), 64)
		if err != nil {
			return nil, fmt.Errorf("tier %q: parse multiplier: %w", part, err)
		}
		tiers = append(tiers, Tier{MinStreak: streak, Multiplier: mult})
	}
	return tiers, nil
}

// Multiplier returns the multiplier for a streak length, counted after the
// current correct answer has been added.
func (p Policy) Multiplier(streak int) float64 {
	m := 1.0
	for _, t := range p.Tiers {
		if streak < t.MinStreak {
			break
		}
		m = t.Multiplier
	}
	return m
}

// ScoreDelta returns the points for a correct answer at the given streak,
// rounded half-up.
func (p Policy) ScoreDelta(streak int) int {
	return roundHalfUp(float64(p.BaseScore) * p.Multiplier(streak))
}

// Outcome is the result of scoring a single answer.
type Outcome struct {
	IsCorrect     bool
	ScoreDelta    int
	Multiplier    float64
	StreakCurrent int
	StreakMax     int
}

// Score computes the streak transition and score delta for one answer.
// It does not depend on any state besides its arguments.
func (p Policy) Score(correct bool, streakCurrent, streakMax int) Outcome {
	if !correct {
		return Outcome{
			Multiplier: 1.0,
			StreakMax:  streakMax,
		}
	}
	streak := streakCurrent + 1
	return Outcome{
		IsCorrect:     true,
		ScoreDelta:    p.ScoreDelta(streak),
		Multiplier:    p.Multiplier(streak),
		StreakCurrent: streak,
		StreakMax:     max(streakMax, streak),
	}
}

func roundHalfUp(v float64) int {
	// Products such as 10*1.2 land a hair above or below the integer; trim
	// that noise before rounding so x.5 boundaries behave.
	return int(math.Floor(math.Round(v*1e9)/1e9 + 0.5))
}
