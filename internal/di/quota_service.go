package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/capgate/capgate/internal/quota"
)

// TierResolverService wraps the tier resolver.
type TierResolverService struct {
	Resolver quota.TierResolver
	cached   *quota.CachedResolver
}

// NewTierResolver creates the static resolver from the configured pro user
// list, wrapped in the ristretto-backed cache. Pro list changes require a
// restart; tier limits themselves hot-reload through the accountant.
func NewTierResolver(i do.Injector) (*TierResolverService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	qcfg := cfgSvc.Get().Quota

	cached, err := quota.NewCachedResolver(
		quota.NewStaticResolver(qcfg.ProUsers),
		qcfg.GetTierCacheTTL(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tier resolver: %w", err)
	}

	return &TierResolverService{Resolver: cached, cached: cached}, nil
}

// Shutdown implements do.Shutdowner, releasing the tier cache.
func (s *TierResolverService) Shutdown() error {
	if s.cached != nil {
		s.cached.Close()
	}
	return nil
}

// QuotaService wraps the daily quota accountant.
type QuotaService struct {
	Accountant *quota.Accountant
}

// NewQuota creates the quota accountant.
func NewQuota(i do.Injector) (*QuotaService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	storeSvc := do.MustInvoke[*StoreService](i)
	resolverSvc := do.MustInvoke[*TierResolverService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	accountant := quota.NewAccountant(
		storeSvc.Store,
		resolverSvc.Resolver,
		func() quota.Config { return cfgSvc.Get().Quota },
		*logSvc.Logger,
	)

	return &QuotaService{Accountant: accountant}, nil
}
