//go:build cuda

package cuda

import (
	"errors"
	"strings"
	"testing"

	"github.com/samcharles93/blast/pkg/device"
)

func TestLaunchPanicWrapsError(t *testing.T) {
	boom := errors.New("boom")
	err := launchPanic("Xaxpy", boom)
	if !errors.Is(err, device.ErrLaunch) || !errors.Is(err, boom) {
		t.Fatalf("launchPanic should wrap both ErrLaunch and the cause: %v", err)
	}
	if !strings.Contains(err.Error(), "Xaxpy") {
		t.Fatalf("missing kernel name: %v", err)
	}
}

func TestLaunchPanicValue(t *testing.T) {
	err := launchPanic("XdotEpilogue", "index out of range")
	if !errors.Is(err, device.ErrLaunch) {
		t.Fatalf("expected ErrLaunch: %v", err)
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Fatalf("unexpected message: %v", err)
	}
}
