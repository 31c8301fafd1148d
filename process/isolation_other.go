//go:build !linux

package process

import (
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/provider"
)

// Only the unconfined backend exists off Linux.
func registerIsolators(reg *provider.Registry[Isolator], cfg IsolationConfig, _ *logger.Logger) {
	reg.RegisterFactory(BackendUnconfined, unconfinedFactory(cfg))
}
