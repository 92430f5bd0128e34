package urltemplate

import "testing"

func TestExpandLiteralAndID32(t *testing.T) {
	var template []byte
	lit, err := Literal("//foo.bar/")
	if err != nil {
		t.Fatalf("Literal() error = %v", err)
	}
	template = append(template, lit...)
	template = append(template, ID32)

	got, err := Expand(template, 478)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	// base32hex of the big-endian bytes of 478 (0x01, 0xDE) with leading
	// zero bytes stripped, trailing '=' padding removed.
	want := "//foo.bar/" + populateExpansions(478)[0]
	if got != want {
		t.Fatalf("Expand() = %q, want %q", got, want)
	}
}

func TestExpandDigitOpcodes(t *testing.T) {
	var template []byte
	for _, op := range []byte{D1, D2, D3} {
		template = append(template, op)
		template = append(template, 1, '/')
	}
	template = append(template, ID32)

	got, err := Expand(template, 0)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	exp := populateExpansions(0)
	want := exp[1] + "/" + exp[2] + "/" + exp[3] + "/" + exp[0]
	if got != want {
		t.Fatalf("Expand() = %q, want %q", got, want)
	}
}

func TestExpandRejectsInvalidOpcode(t *testing.T) {
	if _, err := Expand([]byte{0x00}, 1); err == nil {
		t.Fatalf("expected error for zero-length literal opcode")
	}
	if _, err := Expand([]byte{0xFF}, 1); err == nil {
		t.Fatalf("expected error for opcode outside defined range")
	}
}

func TestExpandTruncatedLiteral(t *testing.T) {
	// opcode claims 5 literal bytes but only 2 follow.
	if _, err := Expand([]byte{5, 'a', 'b'}, 1); err == nil {
		t.Fatalf("expected error for truncated literal run")
	}
}
