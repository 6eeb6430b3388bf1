package profile

import (
	"fmt"

	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
)

// Recall loosening parameters.
const (
	// LoosenMinimumValueStep is subtracted from MinimumValue when loosening.
	LoosenMinimumValueStep = 0.2
	// LoosenMinimumValueFloor bounds the loosened MinimumValue from below.
	LoosenMinimumValueFloor = 0.1
	// LoosenOverallLengthFactor scales OverallMaxLength when loosening.
	LoosenOverallLengthFactor = 1.5
	// LoosenPenaltyFactor scales IrrelevantChunkPenalty when loosening.
	LoosenPenaltyFactor = 0.8
)

// Profile is the retrieval-shaping parameter bundle sent with every retrieval call.
// Lengths are counted in chunks.
type Profile struct {
	Mode                      mode.Mode
	MaxLength                 int
	OverallMaxLength          int
	MinimumValue              float64
	IrrelevantChunkPenalty    float64
	OverallMaxLengthExtension int
	DecayRate                 float64
	TopKForDocumentSelection  int
	ChunkLengthAdjustment     bool
	Loosened                  bool
}

var canonical = map[mode.Mode]Profile{
	mode.Precise: {
		Mode:                      mode.Precise,
		MaxLength:                 10,
		OverallMaxLength:          20,
		MinimumValue:              0.7,
		IrrelevantChunkPenalty:    0.2,
		OverallMaxLengthExtension: 3,
		DecayRate:                 20,
		TopKForDocumentSelection:  5,
		ChunkLengthAdjustment:     true,
	},
	mode.Balanced: {
		Mode:                      mode.Balanced,
		MaxLength:                 15,
		OverallMaxLength:          30,
		MinimumValue:              0.5,
		IrrelevantChunkPenalty:    0.18,
		OverallMaxLengthExtension: 5,
		DecayRate:                 30,
		TopKForDocumentSelection:  10,
		ChunkLengthAdjustment:     true,
	},
	mode.Thorough: {
		Mode:                      mode.Thorough,
		MaxLength:                 20,
		OverallMaxLength:          50,
		MinimumValue:              0.3,
		IrrelevantChunkPenalty:    0.15,
		OverallMaxLengthExtension: 8,
		DecayRate:                 40,
		TopKForDocumentSelection:  15,
		ChunkLengthAdjustment:     true,
	},
	mode.Exhaustive: {
		Mode:                      mode.Exhaustive,
		MaxLength:                 25,
		OverallMaxLength:          100,
		MinimumValue:              0.1,
		IrrelevantChunkPenalty:    0.1,
		OverallMaxLengthExtension: 10,
		DecayRate:                 50,
		TopKForDocumentSelection:  20,
		ChunkLengthAdjustment:     true,
	},
}

// For returns a copy of the canonical profile of m.
func For(m mode.Mode) (Profile, error) {
	p, ok := canonical[m]
	if !ok {
		return Profile{}, fmt.Errorf("no search profile for mode %q", m)
	}
	return p, nil
}

// MustFor is For for modes known to be valid.
func MustFor(m mode.Mode) Profile {
	p, err := For(m)
	if err != nil {
		panic(err)
	}
	return p
}

// Loosen returns a broadened copy for recall escalation: MinimumValue lowered by 0.2
// (floored at 0.1), OverallMaxLength x1.5 (truncated), IrrelevantChunkPenalty x0.8.
func (p Profile) Loosen() Profile {
	out := p
	out.MinimumValue = max(LoosenMinimumValueFloor, p.MinimumValue-LoosenMinimumValueStep)
	out.OverallMaxLength = int(float64(p.OverallMaxLength) * LoosenOverallLengthFactor)
	out.IrrelevantChunkPenalty = p.IrrelevantChunkPenalty * LoosenPenaltyFactor
	out.Loosened = true
	return out
}

// CandidateChunks is the number of chunks to pull from the index before segment extraction.
func (p Profile) CandidateChunks() int {
	return p.TopKForDocumentSelection * p.MaxLength
}

// ChunkBudget is the total number of chunks segments may use.
func (p Profile) ChunkBudget() int {
	if p.ChunkLengthAdjustment {
		return p.OverallMaxLength + p.OverallMaxLengthExtension
	}
	return p.OverallMaxLength
}
