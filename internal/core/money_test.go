package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents() != tc.cents {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.cents, got.Cents(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyAddIsExact(t *testing.T) {
	var sum Money
	for i := 0; i < 10; i++ {
		sum = sum.Add(MoneyFromFloat(0.1))
	}
	if !sum.Equal(MoneyFromCents(100)) {
		t.Fatalf("expected 1.00, got %s", sum)
	}
	if sum.Float64() != 1.0 {
		t.Fatalf("expected float 1, got %v", sum.Float64())
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(MoneyFromCents(15050))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "150.5" {
		t.Fatalf("unexpected encoding %s", b)
	}

	var m struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.345, "b": "7,5"}`), &m); err != nil {
		t.Fatal(err)
	}
	if m.A.Cents() != 1235 || m.B.Cents() != 750 {
		t.Fatalf("unexpected decode a=%s b=%s", m.A, m.B)
	}
	if err := json.Unmarshal([]byte(`{"a": "x"}`), &m); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}
