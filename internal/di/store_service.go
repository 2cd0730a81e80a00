package di

import (
	"github.com/samber/do/v2"

	"github.com/capgate/capgate/internal/counter"
)

// StoreService wraps the counter store backing rate limits and quota.
type StoreService struct {
	Store counter.Store
}

// NewStore creates the counter store from configuration. With a Redis
// address configured this is the failover store; without one, the
// in-process map.
func NewStore(i do.Injector) (*StoreService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	counter.SetLogger(logSvc.Logger)

	return &StoreService{Store: counter.New(cfgSvc.Get().Counter)}, nil
}

// Shutdown implements do.Shutdowner for graceful store cleanup.
func (s *StoreService) Shutdown() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
