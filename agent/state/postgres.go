package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN         string        `envconfig:"DSN" split_words:"true"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" split_words:"true" default:"true"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:chat_sessions"`

	SessionID string           `bun:"session_id,pk"`
	Turns     []contractx.Turn `bun:"turns,type:jsonb,notnull"`
	UpdatedAt time.Time        `bun:"updated_at,notnull"`
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps one row per session with the turns as jsonb.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	store := &PostgresStore{db: bun.NewDB(sqldb, pgdialect.New())}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}

func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create chat_sessions table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	var row sessionRow
	err := p.db.NewSelect().Model(&row).Where("session_id = ?", sessionID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	sess := row.toSession()
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}
	return sess, nil
}

func (p *PostgresStore) Save(ctx context.Context, sess *Session) error {
	if err := prepareSave(sess); err != nil {
		return err
	}
	if _, err := p.upsertQuery(newSessionRow(sess)).Exec(ctx); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	_, err := p.db.NewDelete().Model((*sessionRow)(nil)).Where("session_id = ?", sessionID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *PostgresStore) upsertQuery(row *sessionRow) *bun.InsertQuery {
	return p.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id) DO UPDATE").
		Set("turns = EXCLUDED.turns").
		Set("updated_at = EXCLUDED.updated_at")
}

func newSessionRow(s *Session) *sessionRow {
	turns := s.Turns
	if turns == nil {
		turns = []contractx.Turn{}
	}
	return &sessionRow{SessionID: s.SessionID, Turns: turns, UpdatedAt: s.UpdatedAt}
}

func (r *sessionRow) toSession() *Session {
	turns := r.Turns
	if turns == nil {
		turns = []contractx.Turn{}
	}
	return &Session{SessionID: r.SessionID, Turns: turns, UpdatedAt: r.UpdatedAt.UTC()}
}
