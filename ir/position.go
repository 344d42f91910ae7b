package ir

import "fmt"

// TokenPosition is an offset into the source script. Non-negative values are
// real source positions; negative values are sentinels that classify
// synthetic code (moves, boxing, prologue) and never map to a line.
type TokenPosition int32

const (
	NoSourcePos TokenPosition = -1

	// Classifying positions.
	BoxPos               TokenPosition = -2
	ParallelMovePos      TokenPosition = -3
	TempMovePos          TokenPosition = -4
	ConstantPos          TokenPosition = -5
	PushArgumentPos      TokenPosition = -6
	ControlFlowPos       TokenPosition = -7
	ContextPos           TokenPosition = -8
	MethodExtractorPos   TokenPosition = -9
	DeferredSlowPathPos  TokenPosition = -10
	DeferredDeoptInfoPos TokenPosition = -11
	PrologueCodePos      TokenPosition = -12
	EpilogueCodePos      TokenPosition = -13
	TryCatchEndPos       TokenPosition = -14

	firstClassifyingPos = BoxPos
	lastClassifyingPos  = TryCatchEndPos
)

var classifyingNames = map[TokenPosition]string{
	NoSourcePos:          "none",
	BoxPos:               "box",
	ParallelMovePos:      "parallel-move",
	TempMovePos:          "temp-move",
	ConstantPos:          "constant",
	PushArgumentPos:      "push-arg",
	ControlFlowPos:       "control-flow",
	ContextPos:           "context",
	MethodExtractorPos:   "method-extractor",
	DeferredSlowPathPos:  "deferred-slow-path",
	DeferredDeoptInfoPos: "deferred-deopt-info",
	PrologueCodePos:      "prologue",
	EpilogueCodePos:      "epilogue",
	TryCatchEndPos:       "try-catch-end",
}

// IsReal reports whether p refers to actual source text.
func (p TokenPosition) IsReal() bool {
	return p >= 0
}

// IsClassifying reports whether p is one of the synthetic-code sentinels.
func (p TokenPosition) IsClassifying() bool {
	return p <= firstClassifyingPos && p >= lastClassifyingPos
}

func (p TokenPosition) String() string {
	if p.IsReal() {
		return fmt.Sprintf("%d", int32(p))
	}
	if name, ok := classifyingNames[p]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int32(p))
}

// ParseClassifyingPosition looks up a sentinel position by its printed name.
func ParseClassifyingPosition(name string) (TokenPosition, bool) {
	for pos, n := range classifyingNames {
		if n == name {
			return pos, true
		}
	}
	return 0, false
}
