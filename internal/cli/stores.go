package cli

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	backend "github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/aretw0/multipage/pkg/adapters/file"
	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/adapters/redis"
	"github.com/aretw0/multipage/pkg/adapters/sqlite"
	"github.com/aretw0/multipage/pkg/persistence/middleware"
	"github.com/aretw0/multipage/pkg/ports"
)

// DefaultSessionDir is where file sessions live, relative to the project.
var DefaultSessionDir = filepath.Join(".multipage", "sessions")

// Backend is an opened session store with an optional distributed locker.
type Backend struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the backend connection.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens a session store from a location:
//   - "memory" keeps sessions in the process;
//   - "redis://..." or "rediss://..." uses Redis for sessions and locks;
//   - "sqlite:<path>" uses a SQLite database (":memory:" works);
//   - "file:<dir>" or a bare directory stores one JSON file per session.
//
// An empty location means file sessions under DefaultSessionDir.
func OpenBackend(ctx context.Context, location string) (*Backend, error) {
	switch {
	case location == "":
		return &Backend{Store: file.New(DefaultSessionDir)}, nil

	case location == "memory":
		return &Backend{Store: memory.NewStore()}, nil

	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		opts, err := backend.ParseURL(location)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return &Backend{
			Store:  redis.NewFromClient(client),
			Locker: redis.NewLocker(client, "multipage:"),
			close:  client.Close,
		}, nil

	case strings.HasPrefix(location, "sqlite:"):
		db, err := sql.Open("sqlite", strings.TrimPrefix(location, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection also keeps :memory: shared.
		db.SetMaxOpenConns(1)
		st, err := sqlite.New(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Backend{Store: st, close: db.Close}, nil
	}

	return &Backend{Store: file.New(strings.TrimPrefix(location, "file:"))}, nil
}

// Wrap decorates the store with middlewares, the first one outermost.
func (b *Backend) Wrap(mws ...middleware.Middleware) {
	b.Store = middleware.Chain(b.Store, mws...)
}
