package matcher

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/kidnapped/pkg/logger"
)

// RANSAC settings applied to every matcher so runs stay comparable.
// User params override them.
var ransacDefaults = Params{
	"ransac_reproj_thresh": 3,
	"ransac_conf":          0.95,
	"ransac_iters":         2000,
}

// deviceParam is owned by the runner, never by configuration.
const deviceParam = "device"

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a matcher constructor available under name.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("%w: empty name or nil factory", ErrInvalidParams)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		return fmt.Errorf("matcher %q already registered", name)
	}
	registry[name] = f
	return nil
}

// Available returns the registered matcher names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// New constructs the named matcher. The RANSAC defaults are merged under
// params and a "device" entry is dropped with a warning.
func New(ctx context.Context, name string, params Params) (Matcher, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownMatcher, name, Available())
	}

	merged := maps.Clone(ransacDefaults)
	for k, v := range params {
		if k == deviceParam {
			logger.Get().Named("matcher").Warn(ctx, "device is controlled by the runner and will be ignored",
				logger.String("matcher", name),
				logger.Any("device", v),
			)
			continue
		}
		merged[k] = v
	}

	m, err := f(merged)
	if err != nil {
		return nil, fmt.Errorf("construct matcher %q: %w", name, err)
	}
	return m, nil
}
