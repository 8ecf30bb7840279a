package blas

import (
	"errors"
	"testing"

	"github.com/x448/float16"
)

func TestStatusErr(t *testing.T) {
	t.Parallel()

	if err := Success.Err(); err != nil {
		t.Fatalf("success should map to nil, got %v", err)
	}
	err := InvalidBufferSize.Err()
	if !errors.Is(err, ErrInvalidBufferSize) {
		t.Fatalf("expected errors.Is to match ErrInvalidBufferSize: %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != InvalidBufferSize {
		t.Fatalf("expected StatusError with InvalidBufferSize, got %#v", err)
	}
	if ErrorIn(Success) || !ErrorIn(InvalidKernel) {
		t.Fatalf("ErrorIn mismatch")
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	if got := InvalidDimension.String(); got != "invalid-dimension" {
		t.Fatalf("got %q", got)
	}
	if got := Status(7).String(); got != "status(7)" {
		t.Fatalf("got %q", got)
	}
}

func TestPrecisionOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		got  Precision
		want Precision
	}{
		{PrecisionOf[float16.Float16](), Half},
		{PrecisionOf[float32](), Single},
		{PrecisionOf[float64](), Double},
		{PrecisionOf[complex64](), ComplexSingle},
		{PrecisionOf[complex128](), ComplexDouble},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("PrecisionOf: got %s want %s", tc.got, tc.want)
		}
	}
}

func TestPrecisionElemSize(t *testing.T) {
	t.Parallel()

	want := map[Precision]int{Half: 2, Single: 4, Double: 8, ComplexSingle: 8, ComplexDouble: 16}
	for p, size := range want {
		if p.ElemSize() != size {
			t.Fatalf("%s: elem size %d want %d", p, p.ElemSize(), size)
		}
	}
	if Precision(42).ElemSize() != 0 {
		t.Fatalf("unknown precision should have zero size")
	}
}

func TestParsePrecision(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Precision{
		"single": Single,
		"S":      Single,
		"64":     Double,
		"3232":   ComplexSingle,
		"z":      ComplexDouble,
		"half":   Half,
	} {
		got, err := ParsePrecision(in)
		if err != nil {
			t.Fatalf("ParsePrecision(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParsePrecision(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParsePrecision("quad"); err == nil {
		t.Fatalf("expected error for unknown precision")
	}
}

func TestPrecisionText(t *testing.T) {
	t.Parallel()

	b, err := ComplexDouble.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var p Precision
	if err := p.UnmarshalText(b); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if p != ComplexDouble {
		t.Fatalf("got %s", p)
	}
}

func TestParseLayoutTranspose(t *testing.T) {
	t.Parallel()

	if l, err := ParseLayout("row"); err != nil || l != RowMajor {
		t.Fatalf("ParseLayout(row) = %v, %v", l, err)
	}
	if tr, err := ParseTranspose("c"); err != nil || tr != ConjTrans {
		t.Fatalf("ParseTranspose(c) = %v, %v", tr, err)
	}
	if _, err := ParseTranspose("x"); err == nil {
		t.Fatalf("expected error")
	}
	if !RowMajor.Valid() || Layout(2).Valid() || Layout(-1).Valid() {
		t.Fatalf("layout validity is wrong")
	}
	if !ConjTrans.Valid() || Transpose(3).Valid() || Transpose(-1).Valid() {
		t.Fatalf("transpose validity is wrong")
	}
	if !errors.Is(InvalidValue.Err(), ErrInvalidValue) || InvalidValue.String() != "invalid-value" {
		t.Fatalf("InvalidValue does not map to its sentinel")
	}
}
