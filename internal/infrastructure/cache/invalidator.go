package cache

import (
	"context"

	"github.com/storemaster/storemaster-api/internal/domain/store"
	"github.com/storemaster/storemaster-api/pkg/logger"
)

// StartInvalidator suscribe a los cambios de las colecciones vía store.Watch
// y elimina las claves de cache afectadas. Como la suscripción llega por el
// store, la invalidación también cubre escrituras hechas por otras instancias
// del API (modelo multi-escritor).
func StartInvalidator(ctx context.Context, st store.Store, c Client, log *logger.Logger) {
	go watchAndInvalidate(ctx, st, store.CollectionProducts, c, log, KeyProductList, KeyDashboardSummary)
	go watchAndInvalidate(ctx, st, store.CollectionSales, c, log, KeyDashboardSummary)
}

func watchAndInvalidate(ctx context.Context, st store.Store, collection string, c Client, log *logger.Logger, keys ...string) {
	ch, err := st.Watch(ctx, collection, store.Query{})
	if err != nil {
		log.Warn().Err(err).Str("collection", collection).Msg("watch para invalidación de cache no disponible")
		return
	}
	for range ch {
		if err := c.Delete(ctx, keys...); err != nil {
			log.Warn().Err(err).Str("collection", collection).Msg("invalidar cache")
		}
	}
}
