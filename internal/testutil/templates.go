package testutil

import (
	"sync"
	"testing"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/refstack/refstack/internal/app/resources"
	"go.uber.org/zap"
)

var (
	bootOnce sync.Once
	bootErr  error
)

// BootTemplates compiles every template set registered so far, shared
// layout included, and installs the engine so handler tests can assert on
// rendered pages. Feature packages register their sets in init, so calling
// this from a test sees the package under test.
func BootTemplates(t *testing.T) {
	t.Helper()
	bootOnce.Do(func() {
		resources.LoadSharedTemplates()
		eng := templates.New(false)
		if bootErr = eng.Boot(zap.NewNop()); bootErr == nil {
			templates.UseEngine(eng, zap.NewNop())
		}
	})
	if bootErr != nil {
		t.Fatalf("boot templates: %v", bootErr)
	}
}
