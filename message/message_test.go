package message

import "testing"

func TestMethodNames(t *testing.T) {
	cases := []struct {
		m    Method
		name string
	}{
		{MethodCreate, "Create"},
		{MethodDelete, "Delete"},
		{MethodGet, "Get"},
		{MethodIncrement, "Increment"},
	}

	for _, tc := range cases {
		if got := tc.m.String(); got != tc.name {
			t.Errorf("String() = %q, want %q", got, tc.name)
		}
		m, ok := ParseMethod(tc.name)
		if !ok || m != tc.m {
			t.Errorf("ParseMethod(%q) = %v, %v, want %v, true", tc.name, m, ok, tc.m)
		}
	}

	if _, ok := ParseMethod("Decrement"); ok {
		t.Fatal("expect unknown method name to be rejected")
	}
	if Method(9).Valid() {
		t.Fatal("expect Method(9) to be invalid")
	}
}

func TestEnvelope(t *testing.T) {
	ok := Ok(Text("v"))
	if !ok.Valid() || ok.Err != nil {
		t.Fatalf("Ok envelope invalid: %v", ok)
	}

	fail := Fail("no such key")
	if !fail.Valid() || fail.Response != nil {
		t.Fatalf("Fail envelope invalid: %v", fail)
	}
	if fail.Err.Error() != "no such key" {
		t.Fatalf("expect verbatim message, got %q", fail.Err.Error())
	}

	// An empty server message is still a failure.
	if !Fail("").Valid() {
		t.Fatal("expect Fail(\"\") to be valid")
	}
	if (Envelope{}).Valid() {
		t.Fatal("expect zero envelope to be invalid")
	}
	if (Envelope{Response: Counter(1), Err: &ServerError{}}).Valid() {
		t.Fatal("expect envelope with both sides set to be invalid")
	}
}

func TestVariantName(t *testing.T) {
	cases := []struct {
		v    any
		want string
	}{
		{CounterQuery{Key: "c", Method: MethodGet}, "Counter"},
		{TextQuery{Method: TextWrite{Key: "k", Value: "v"}}, "Text(Write)"},
		{Counter(5), "Counter"},
		{Text("x"), "Text"},
		{nil, "<nil>"},
	}
	for _, tc := range cases {
		if got := VariantName(tc.v); got != tc.want {
			t.Errorf("VariantName(%#v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}
