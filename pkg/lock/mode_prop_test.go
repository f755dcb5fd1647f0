package lock

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func modeGen() gopter.Gen {
	return gen.IntRange(0, numModes-1).Map(func(i int) Mode { return Mode(i) })
}

func TestModeAlgebraProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("Join is commutative", prop.ForAll(
		func(a, b Mode) bool {
			return Join(a, b) == Join(b, a)
		},
		modeGen(), modeGen(),
	))

	properties.Property("Join is associative", prop.ForAll(
		func(a, b, c Mode) bool {
			return Join(Join(a, b), c) == Join(a, Join(b, c))
		},
		modeGen(), modeGen(), modeGen(),
	))

	properties.Property("Join result is at least as strong as both operands", prop.ForAll(
		func(a, b Mode) bool {
			joined := Join(a, b)
			return StrongerOrEqual(joined, a) && StrongerOrEqual(joined, b)
		},
		modeGen(), modeGen(),
	))

	properties.Property("Conflicts is symmetric", prop.ForAll(
		func(a, b Mode) bool {
			return Conflicts(a, b) == Conflicts(b, a)
		},
		modeGen(), modeGen(),
	))

	properties.Property("NONE never conflicts", prop.ForAll(
		func(a Mode) bool {
			return !Conflicts(ModeNone, a) && !Conflicts(a, ModeNone)
		},
		modeGen(),
	))

	properties.TestingRun(t)
}
