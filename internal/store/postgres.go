package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mktbiz-byte/cnec-platform/internal/db"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"list_feedback":       `SELECT id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at FROM video_feedbacks WHERE submission_id = $1 AND video_version = $2 ORDER BY ts ASC`,
	"insert_feedback":     `INSERT INTO video_feedbacks (id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"update_feedback_box": `UPDATE video_feedbacks SET box = $1 WHERE id = $2`,
	"delete_feedback":     `DELETE FROM video_feedbacks WHERE id = $1`,
	"append_reply":        `UPDATE video_feedbacks SET replies = replies || $1::jsonb WHERE id = $2`,
	"set_video_status":    `INSERT INTO submissions (id, video_status, updated_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET video_status = EXCLUDED.video_status, updated_at = EXCLUDED.updated_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the snapshot sync).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           TEXT PRIMARY KEY,
	video_status TEXT NOT NULL DEFAULT 'pending',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS video_feedbacks (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	submission_id   TEXT NOT NULL,
	video_version   INTEGER NOT NULL DEFAULT 1,
	ts              DOUBLE PRECISION NOT NULL,
	box             JSONB NOT NULL,
	comment         TEXT NOT NULL,
	author          TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT,
	attachment_name TEXT,
	replies         JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_video_feedbacks_submission ON video_feedbacks(submission_id, video_version, ts);

CREATE TABLE IF NOT EXISTS creator_snapshots (
	region              TEXT NOT NULL,
	source_id           TEXT NOT NULL,
	name                TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	profile_image       TEXT NOT NULL DEFAULT '',
	instagram_url       TEXT NOT NULL DEFAULT '',
	instagram_followers BIGINT NOT NULL DEFAULT 0,
	youtube_url         TEXT NOT NULL DEFAULT '',
	youtube_subscribers BIGINT NOT NULL DEFAULT 0,
	tiktok_url          TEXT NOT NULL DEFAULT '',
	tiktok_followers    BIGINT NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ,
	synced_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (region, source_id)
);

CREATE INDEX IF NOT EXISTS idx_creator_snapshots_region ON creator_snapshots(region);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListFeedback(ctx context.Context, submissionID string, version int) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at
		 FROM video_feedbacks WHERE submission_id = $1 AND video_version = $2 ORDER BY ts ASC`,
		submissionID, version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list feedback %s", submissionID)
	}
	defer rows.Close()

	var feedbacks []model.Feedback
	for rows.Next() {
		fb, err := scanFeedbackRow(rows)
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, *fb)
	}
	return feedbacks, eris.Wrap(rows.Err(), "postgres: list feedback iterate")
}

func (s *PostgresStore) InsertFeedback(ctx context.Context, fb *model.Feedback) error {
	boxJSON, repliesJSON, err := marshalFeedbackJSON(fb)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO video_feedbacks (id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		fb.ID, fb.SubmissionID, fb.VideoVersion, fb.Timestamp, boxJSON,
		fb.Comment, fb.Author, nullIfEmpty(fb.AttachmentURL), nullIfEmpty(fb.AttachmentName),
		repliesJSON, fb.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert feedback")
}

func (s *PostgresStore) UpdateFeedbackBox(ctx context.Context, id string, box model.AnnotationBox) error {
	boxJSON, err := json.Marshal(box)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal box")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE video_feedbacks SET box = $1 WHERE id = $2`,
		boxJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update feedback box %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update feedback box %s", id)
	}
	return nil
}

func (s *PostgresStore) DeleteFeedback(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM video_feedbacks WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete feedback %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete feedback %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendReply(ctx context.Context, id string, reply model.Reply) error {
	replyJSON, err := json.Marshal([]model.Reply{reply})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal reply")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE video_feedbacks SET replies = replies || $1::jsonb WHERE id = $2`,
		replyJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append reply %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: append reply %s", id)
	}
	return nil
}

func (s *PostgresStore) SetVideoStatus(ctx context.Context, submissionID string, status model.VideoStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (id, video_status, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET video_status = EXCLUDED.video_status, updated_at = EXCLUDED.updated_at`,
		submissionID, string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set video status %s", submissionID)
}

// snapshotUpsert is the bulk configuration for the creator snapshot
// refresh. Re-syncing the same creator overwrites the previous row.
var snapshotUpsert = db.UpsertConfig{
	Table: "creator_snapshots",
	Columns: []string{
		"region", "source_id", "name", "email", "phone", "profile_image",
		"instagram_url", "instagram_followers",
		"youtube_url", "youtube_subscribers",
		"tiktok_url", "tiktok_followers",
		"created_at", "synced_at",
	},
	ConflictKeys: []string{"region", "source_id"},
}

func (s *PostgresStore) UpsertCreators(ctx context.Context, creators []model.Creator) (int, error) {
	if len(creators) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(creators))
	for _, c := range creators {
		if c.ID == "" {
			continue
		}
		rows = append(rows, []any{
			string(c.Region), c.ID, c.Name, c.Email, c.Phone, c.ProfileImage,
			c.InstagramURL, c.InstagramFollowers,
			c.YouTubeURL, c.YouTubeSubscribers,
			c.TikTokURL, c.TikTokFollowers,
			nullIfZeroTime(c.CreatedAt), now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, snapshotUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert creators")
	}
	return int(n), nil
}

// helpers

func marshalFeedbackJSON(fb *model.Feedback) ([]byte, []byte, error) {
	boxJSON, err := json.Marshal(fb.Box)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: marshal box")
	}
	replies := fb.Replies
	if replies == nil {
		replies = []model.Reply{}
	}
	repliesJSON, err := json.Marshal(replies)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: marshal replies")
	}
	return boxJSON, repliesJSON, nil
}

type feedbackScannable interface {
	Scan(dest ...any) error
}

func scanFeedbackRow(row feedbackScannable) (*model.Feedback, error) {
	var fb model.Feedback
	var boxJSON, repliesJSON []byte
	var attachmentURL, attachmentName *string

	err := row.Scan(&fb.ID, &fb.SubmissionID, &fb.VideoVersion, &fb.Timestamp,
		&boxJSON, &fb.Comment, &fb.Author, &attachmentURL, &attachmentName,
		&repliesJSON, &fb.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "postgres: scan feedback")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan feedback")
	}

	if err := json.Unmarshal(boxJSON, &fb.Box); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal box")
	}
	if err := json.Unmarshal(repliesJSON, &fb.Replies); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal replies")
	}
	if attachmentURL != nil {
		fb.AttachmentURL = *attachmentURL
	}
	if attachmentName != nil {
		fb.AttachmentName = *attachmentName
	}
	return &fb, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
