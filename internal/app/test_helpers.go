package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/kiko1842/vaultwire/internal/hcl_adapter"
	"github.com/kiko1842/vaultwire/internal/pipeline"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an app over the HCL loader with debug logging
// captured in the returned buffer. A non-nil connect replaces the backend.
func SetupAppTest(t *testing.T, appConfig *Config, connect pipeline.Connector) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp := NewApp(logBuffer, appConfig, hcl_adapter.NewLoader())
	if connect != nil {
		testApp.connect = connect
	}

	t.Cleanup(func() {
		if os.Getenv("VAULTWIRE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}
