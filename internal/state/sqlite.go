package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "alertd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetOrCreate(ctx context.Context, recipientID, alertID string) (State, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_state(recipient_id, alert_id, status) VALUES(?,?,?)
		 ON CONFLICT(recipient_id, alert_id) DO NOTHING`,
		recipientID, alertID, string(StatusUnread),
	)
	if err != nil {
		return State{}, err
	}
	st, ok, err := s.Get(ctx, recipientID, alertID)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, fmt.Errorf("state: record %s/%s missing after insert", recipientID, alertID)
	}
	return st, nil
}

func (s *sqliteStore) Upsert(ctx context.Context, st State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_state(recipient_id, alert_id, status, last_reminder_sent, snoozed_until, read_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(recipient_id, alert_id) DO UPDATE SET
		   status=excluded.status,
		   last_reminder_sent=excluded.last_reminder_sent,
		   snoozed_until=excluded.snoozed_until,
		   read_at=excluded.read_at`,
		st.RecipientID, st.AlertID, string(st.Status),
		nullMilli(st.LastReminderSent), nullMilli(st.SnoozedUntil), nullMilli(st.ReadAt),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, recipientID, alertID string) (State, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT recipient_id, alert_id, status, last_reminder_sent, snoozed_until, read_at
		 FROM notification_state WHERE recipient_id = ? AND alert_id = ?`,
		recipientID, alertID,
	)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

func (s *sqliteStore) StampReminder(ctx context.Context, recipientID, alertID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_state SET last_reminder_sent = ?
		 WHERE recipient_id = ? AND alert_id = ?`,
		at.UnixMilli(), recipientID, alertID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO notification_state(recipient_id, alert_id, status, last_reminder_sent)
			 VALUES(?,?,?,?) ON CONFLICT(recipient_id, alert_id) DO UPDATE SET
			   last_reminder_sent=excluded.last_reminder_sent`,
			recipientID, alertID, string(StatusUnread), at.UnixMilli(),
		)
		return err
	}
	return nil
}

func (s *sqliteStore) ExpireSnooze(ctx context.Context, recipientID, alertID string) error {
	// Conditional on status so a concurrent read wins over the expiry.
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_state SET status = ?, snoozed_until = NULL
		 WHERE recipient_id = ? AND alert_id = ? AND status = ?`,
		string(StatusUnread), recipientID, alertID, string(StatusSnoozed),
	)
	return err
}

func (s *sqliteStore) All(ctx context.Context) ([]State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recipient_id, alert_id, status, last_reminder_sent, snoozed_until, read_at
		 FROM notification_state`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, rec DeliveryRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_log(at, alert_id, recipient_id, channel, ok, err) VALUES(?,?,?,?,?,?)`,
		rec.At.UnixMilli(), rec.AlertID, rec.RecipientID, rec.Channel, boolInt(rec.OK), nullStr(rec.Error),
	)
	return err
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, alert_id, recipient_id, channel, ok, err
		 FROM delivery_log ORDER BY at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			at      int64
			rec     DeliveryRecord
			ok      int
			errText sql.NullString
		)
		if err := rows.Scan(&at, &rec.AlertID, &rec.RecipientID, &rec.Channel, &ok, &errText); err != nil {
			return nil, err
		}
		rec.At = time.UnixMilli(at)
		rec.OK = ok != 0
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (State, error) {
	var (
		st       State
		status   string
		lastSent sql.NullInt64
		snoozed  sql.NullInt64
		readAt   sql.NullInt64
	)
	if err := row.Scan(&st.RecipientID, &st.AlertID, &status, &lastSent, &snoozed, &readAt); err != nil {
		return State{}, err
	}
	st.Status = Status(status)
	if lastSent.Valid {
		st.LastReminderSent = time.UnixMilli(lastSent.Int64)
	}
	if snoozed.Valid {
		st.SnoozedUntil = time.UnixMilli(snoozed.Int64)
	}
	if readAt.Valid {
		st.ReadAt = time.UnixMilli(readAt.Int64)
	}
	return st, nil
}

func nullMilli(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
