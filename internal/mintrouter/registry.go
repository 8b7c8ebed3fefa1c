package mintrouter

import (
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

// OrderBookRegistry lazily creates and caches one *orderbook.Store per
// (mint, direction) pair, backed by a single shared Pebble instance.
// Grounded on the original source's OrderBookStorage.get_or_create_manager:
// every order book for a mint lives in the same embedded database, keyed
// by "mint:direction", initialized with a fixed system authority on
// first use and tolerated as already-initialized thereafter.
type OrderBookRegistry struct {
	db *pebble.DB

	mu    sync.RWMutex
	books map[string]*orderbook.Store
}

func NewOrderBookRegistry(db *pebble.DB) *OrderBookRegistry {
	return &OrderBookRegistry{
		db:    db,
		books: make(map[string]*orderbook.Store),
	}
}

const systemAuthority = "system"

func registryKey(mint string, dir orderbook.Direction) string {
	return mint + ":" + string(dir)
}

// Store returns the order book for (mint, dir), initializing it on first
// access. Initialization races are resolved by tolerating
// ErrAlreadyExists from a concurrent first-access.
func (r *OrderBookRegistry) Store(mint string, dir orderbook.Direction) *orderbook.Store {
	key := registryKey(mint, dir)

	r.mu.RLock()
	store, ok := r.books[key]
	r.mu.RUnlock()
	if ok {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.books[key]; ok {
		return store
	}

	store = orderbook.NewStore(r.db, mint, dir)
	if err := store.Initialize(systemAuthority); err != nil {
		// Already initialized from a prior run against the same database
		// is expected and not an error; anything else is surfaced lazily
		// on the first real operation against the store.
		_ = err
	}
	r.books[key] = store
	return store
}

// Count reports how many (mint, direction) books have been touched this
// process lifetime.
func (r *OrderBookRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
