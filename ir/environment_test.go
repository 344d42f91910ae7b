package ir

import (
	"errors"
	"testing"
)

func envWithArgs(nonArgs, args int) (*Environment, []Instruction) {
	var values []Instruction
	for i := 0; i < nonArgs; i++ {
		values = append(values, NewConstant(int64(i), NoSourcePos))
	}
	for i := 0; i < args; i++ {
		values = append(values, NewPushArgument(nil))
	}
	env := NewEnvironment(&Function{Name: "f"}, 0, 0, values, nil)
	locs := make([]Location, len(values))
	for i := range locs {
		locs[i] = RegisterLocation(i)
	}
	env.SetLocations(locs)
	return env, values
}

func TestDropArgumentsKeepsPrefix(t *testing.T) {
	for argc := 0; argc <= 5; argc++ {
		env, values := envWithArgs(3, argc)
		env.DropArguments(argc, true)

		if env.Length() != 3 {
			t.Fatalf("argc=%d: length = %d, want 3", argc, env.Length())
		}
		for i := 0; i < 3; i++ {
			if env.ValueAt(i) != values[i] {
				t.Errorf("argc=%d: value %d changed", argc, i)
			}
			if !env.LocationAt(i).Equals(RegisterLocation(i)) {
				t.Errorf("argc=%d: location %d = %s", argc, i, env.LocationAt(i))
			}
		}
	}
}

func TestDropArgumentsOnCopyLeavesOriginal(t *testing.T) {
	env, _ := envWithArgs(2, 2)
	pending := env.Copy()
	pending.DropArguments(2, true)

	if env.Length() != 4 {
		t.Errorf("original length = %d, want 4", env.Length())
	}
	if pending.Length() != 2 {
		t.Errorf("copy length = %d, want 2", pending.Length())
	}
}

func expectInvariant(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected invariant panic")
		}
		err, ok := r.(error)
		var inv *InvariantError
		if !ok || !errors.As(err, &inv) {
			t.Fatalf("panic %v is not an invariant error", r)
		}
	}()
	fn()
}

func TestDropArgumentsChecked(t *testing.T) {
	t.Run("non-argument value", func(t *testing.T) {
		env, _ := envWithArgs(3, 1)
		expectInvariant(t, func() { env.DropArguments(2, true) })
	})
	t.Run("too many", func(t *testing.T) {
		env, _ := envWithArgs(0, 1)
		expectInvariant(t, func() { env.DropArguments(2, true) })
	})
	t.Run("unallocated", func(t *testing.T) {
		env := NewEnvironment(nil, 0, 0, []Instruction{NewPushArgument(nil)}, nil)
		expectInvariant(t, func() { env.DropArguments(1, true) })
	})
}

func TestDropArgumentsUnchecked(t *testing.T) {
	env, _ := envWithArgs(3, 0)
	env.DropArguments(1, false)
	if env.Length() != 2 {
		t.Errorf("length = %d, want 2", env.Length())
	}
	env.DropArguments(10, false)
	if env.Length() != 0 {
		t.Errorf("length = %d, want 0", env.Length())
	}
}
