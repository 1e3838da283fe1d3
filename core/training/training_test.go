package training

import "testing"

func TestDepositAmount(t *testing.T) {
	cases := []struct {
		name  string
		price int64
		pct   int
		want  int64
	}{
		{"thirty percent", 100000, 30, 30000},
		{"full price at 100", 100000, 100, 100000},
		{"full price at zero", 100000, 0, 100000},
		{"rounds down", 9999, 30, 2999},
		{"one percent", 100000, 1, 1000},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := Training{Price: c.price, DepositPercentage: c.pct}
			if got := DepositAmount(tr); got != c.want {
				t.Fatalf("DepositAmount(price=%d, pct=%d) = %d, want %d", c.price, c.pct, got, c.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if (Training{CurrentParticipants: 7, MaxParticipants: 8}).Full() {
		t.Fatal("one seat left is not full")
	}
	if !(Training{CurrentParticipants: 8, MaxParticipants: 8}).Full() {
		t.Fatal("at capacity is full")
	}
}
