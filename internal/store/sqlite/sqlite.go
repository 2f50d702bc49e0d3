package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wiremeet/internal/store"
)

// Schema is applied by New on every start; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS meetings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL DEFAULT '',
	owner_id   INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS participations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	joined_at  DATETIME NOT NULL,
	left_at    DATETIME,
	FOREIGN KEY (meeting_id) REFERENCES meetings(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_participations_open ON participations(meeting_id, user_id, left_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store and applies Schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// uniqueErr maps UNIQUE constraint violations to store.ErrConflict.
func uniqueErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return err
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest)
		VALUES (?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", uniqueErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	if len(sessionID) < 8 {
		return nil, fmt.Errorf("guest session id too short")
	}
	query := `
		INSERT INTO users (username, password_hash, is_guest, session_id)
		VALUES (?, '', 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, guestUsername, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a registered user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE username = ? AND is_guest = 0
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== MeetingStore implementation ====

// CreateMeeting binds roomID to a new meeting.
func (s *SQLiteStore) CreateMeeting(ctx context.Context, roomID, title string, ownerID *int64) (*store.Meeting, error) {
	query := `
		INSERT INTO meetings (room_id, title, owner_id)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, roomID, title, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", uniqueErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMeeting(ctx, id)
}

// GetMeeting retrieves a meeting by ID.
func (s *SQLiteStore) GetMeeting(ctx context.Context, id int64) (*store.Meeting, error) {
	query := `
		SELECT id, room_id, title, owner_id, created_at
		FROM meetings
		WHERE id = ?
	`
	return scanMeeting(s.db.QueryRowContext(ctx, query, id))
}

// FindMeetingByRoom returns the meeting bound to roomID.
func (s *SQLiteStore) FindMeetingByRoom(ctx context.Context, roomID string) (*store.Meeting, error) {
	query := `
		SELECT id, room_id, title, owner_id, created_at
		FROM meetings
		WHERE room_id = ?
	`
	return scanMeeting(s.db.QueryRowContext(ctx, query, roomID))
}

func scanMeeting(row *sql.Row) (*store.Meeting, error) {
	var (
		m       store.Meeting
		ownerID sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.RoomID, &m.Title, &ownerID, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meeting: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	if ownerID.Valid {
		m.OwnerID = &ownerID.Int64
	}
	return &m, nil
}

// ==== ParticipationStore implementation ====

// OpenParticipation stores a join timestamp and returns the record id.
func (s *SQLiteStore) OpenParticipation(ctx context.Context, meetingID, userID int64) (int64, error) {
	query := `
		INSERT INTO participations (meeting_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, meetingID, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("insert participation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get participation id: %w", err)
	}
	return id, nil
}

// CloseParticipation sets left_at on the given record if it is still open.
func (s *SQLiteStore) CloseParticipation(ctx context.Context, participationID int64) error {
	query := `
		UPDATE participations
		SET left_at = ?
		WHERE id = ? AND left_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, s.now(), participationID)
	if err != nil {
		return fmt.Errorf("close participation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("open participation: %w", store.ErrNotFound)
	}
	return nil
}

// ListParticipations lists records of a meeting, oldest first.
func (s *SQLiteStore) ListParticipations(ctx context.Context, meetingID int64) ([]*store.Participation, error) {
	query := `
		SELECT id, meeting_id, user_id, joined_at, left_at
		FROM participations
		WHERE meeting_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query participations: %w", err)
	}
	defer rows.Close()

	var out []*store.Participation
	for rows.Next() {
		var (
			p      store.Participation
			leftAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.UserID, &p.JoinedAt, &leftAt); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		if leftAt.Valid {
			t := leftAt.Time
			p.LeftAt = &t
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participations: %w", err)
	}
	return out, nil
}

var _ store.Store = (*SQLiteStore)(nil)
