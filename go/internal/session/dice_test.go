package session

import "testing"

func TestRandomRollerRange(t *testing.T) {
	var seen [7]bool
	for range 500 {
		v, err := RandomRoller{}.Roll()
		if err != nil {
			t.Fatal(err)
		}
		if v < 1 || v > 6 {
			t.Fatalf("Roll = %d, out of range", v)
		}
		seen[v] = true
	}
	for v := 1; v <= 6; v++ {
		if !seen[v] {
			t.Errorf("value %d never rolled", v)
		}
	}
}

func TestFixedRoller(t *testing.T) {
	r := &FixedRoller{Values: []int{3, 6, 1}}
	var got []int
	for range 5 {
		v, err := r.Roll()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	want := []int{3, 6, 1, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rolls = %v, want %v", got, want)
		}
	}

	if _, err := (&FixedRoller{}).Roll(); err == nil {
		t.Error("empty FixedRoller rolled")
	}
}
