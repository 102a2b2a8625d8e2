package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	if got := MetadataFor(CodeNotFound).HTTPStatus; got != http.StatusNotFound {
		t.Fatalf("expected 404 for not found, got %d", got)
	}
	if got := MetadataFor(CodeRangeInvalid).HTTPStatus; got != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416 for range errors, got %d", got)
	}
	if got := MetadataFor(Code("BOGUS")).HTTPStatus; got != http.StatusInternalServerError {
		t.Fatalf("unknown codes must map to 500, got %d", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeDependency, cause, "write blob")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be discoverable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsNestedTypedError(t *testing.T) {
	typed := New(CodeValidation, "bad input")
	wrapped := fmt.Errorf("outer: %w", typed)

	got := As(wrapped)
	if got == nil {
		t.Fatal("expected typed error to be found")
	}
	if got.Code() != CodeValidation {
		t.Fatalf("unexpected code %s", got.Code())
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeNotFound, "missing")
	if !IsCode(err, CodeNotFound) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(err, CodeValidation) {
		t.Fatal("expected IsCode mismatch")
	}
	if IsCode(errors.New("plain"), CodeNotFound) {
		t.Fatal("plain errors carry no code")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeInternal, errors.New("root"), "outer")
	dump := Dump(err)

	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}
