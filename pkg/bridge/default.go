package bridge

import (
	"sync"

	"github.com/samvad-hq/httpbridge/internal/app"
	"github.com/samvad-hq/httpbridge/internal/config"
)

var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
)

// Default returns the process-wide bridge, building it from HTTPBRIDGE_*
// configuration on first use. It is never rebuilt after Shutdown, so calls
// made after shutdown fail with CodeAlreadyShutdown.
func Default() *Bridge {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultBridge = newFailed(err)
			return
		}
		rt, err := app.Open(cfg)
		if err != nil {
			defaultBridge = newFailed(err)
			return
		}
		defaultBridge = New(rt)
	})
	return defaultBridge
}
