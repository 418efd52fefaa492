package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           TEXT PRIMARY KEY,
	video_status TEXT NOT NULL DEFAULT 'pending',
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS video_feedbacks (
	id              TEXT PRIMARY KEY,
	submission_id   TEXT NOT NULL,
	video_version   INTEGER NOT NULL DEFAULT 1,
	ts              REAL NOT NULL,
	box             TEXT NOT NULL,
	comment         TEXT NOT NULL,
	author          TEXT NOT NULL DEFAULT '',
	attachment_url  TEXT,
	attachment_name TEXT,
	replies         TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	instagram_followers INTEGER NOT NULL DEFAULT 0,
	youtube_url         TEXT NOT NULL DEFAULT '',
	youtube_subscribers INTEGER NOT NULL DEFAULT 0,
	tiktok_url          TEXT NOT NULL DEFAULT '',
	tiktok_followers    INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME,
	synced_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (region, source_id)
);

CREATE INDEX IF NOT EXISTS idx_creator_snapshots_region ON creator_snapshots(region);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, submissionID string, version int) ([]model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at
		 FROM video_feedbacks WHERE submission_id = ? AND video_version = ? ORDER BY ts ASC`,
		submissionID, version,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list feedback %s", submissionID)
	}
	defer rows.Close()

	var feedbacks []model.Feedback
	for rows.Next() {
		fb, err := scanSQLiteFeedback(rows)
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, *fb)
	}
	return feedbacks, eris.Wrap(rows.Err(), "sqlite: list feedback iterate")
}

func (s *SQLiteStore) InsertFeedback(ctx context.Context, fb *model.Feedback) error {
	boxJSON, repliesJSON, err := marshalFeedbackJSON(fb)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO video_feedbacks (id, submission_id, video_version, ts, box, comment, author, attachment_url, attachment_name, replies, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.SubmissionID, fb.VideoVersion, fb.Timestamp, string(boxJSON),
		fb.Comment, fb.Author, nullIfEmpty(fb.AttachmentURL), nullIfEmpty(fb.AttachmentName),
		string(repliesJSON), fb.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert feedback")
}

func (s *SQLiteStore) UpdateFeedbackBox(ctx context.Context, id string, box model.AnnotationBox) error {
	boxJSON, err := json.Marshal(box)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal box")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE video_feedbacks SET box = ? WHERE id = ?`,
		string(boxJSON), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update feedback box %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) DeleteFeedback(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM video_feedbacks WHERE id = ?`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete feedback %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) AppendReply(ctx context.Context, id string, reply model.Reply) error {
	// Read-modify-write; SQLite has no jsonb concat operator and the
	// dev store has no concurrent writers.
	var repliesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT replies FROM video_feedbacks WHERE id = ?`, id,
	).Scan(&repliesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: append reply %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load replies %s", id)
	}

	var replies []model.Reply
	if err := json.Unmarshal([]byte(repliesJSON), &replies); err != nil {
		return eris.Wrap(err, "sqlite: unmarshal replies")
	}
	replies = append(replies, reply)
	updated, err := json.Marshal(replies)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal replies")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE video_feedbacks SET replies = ? WHERE id = ?`,
		string(updated), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append reply %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) SetVideoStatus(ctx context.Context, submissionID string, status model.VideoStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, video_status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET video_status = excluded.video_status, updated_at = excluded.updated_at`,
		submissionID, string(status), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set video status %s", submissionID)
}

func (s *SQLiteStore) UpsertCreators(ctx context.Context, creators []model.Creator) (int, error) {
	if len(creators) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert creators begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO creator_snapshots (region, source_id, name, email, phone, profile_image,
			instagram_url, instagram_followers, youtube_url, youtube_subscribers,
			tiktok_url, tiktok_followers, created_at, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (region, source_id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone,
			profile_image = excluded.profile_image,
			instagram_url = excluded.instagram_url, instagram_followers = excluded.instagram_followers,
			youtube_url = excluded.youtube_url, youtube_subscribers = excluded.youtube_subscribers,
			tiktok_url = excluded.tiktok_url, tiktok_followers = excluded.tiktok_followers,
			created_at = excluded.created_at, synced_at = excluded.synced_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	count := 0
	for _, c := range creators {
		if c.ID == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			string(c.Region), c.ID, c.Name, c.Email, c.Phone, c.ProfileImage,
			c.InstagramURL, c.InstagramFollowers,
			c.YouTubeURL, c.YouTubeSubscribers,
			c.TikTokURL, c.TikTokFollowers,
			nullIfZeroTime(c.CreatedAt), now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert creator %s/%s", c.Region, c.ID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert creators commit")
	}
	return count, nil
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: feedback %s", id)
	}
	return nil
}

func scanSQLiteFeedback(rows *sql.Rows) (*model.Feedback, error) {
	var fb model.Feedback
	var boxJSON, repliesJSON string
	var attachmentURL, attachmentName sql.NullString

	err := rows.Scan(&fb.ID, &fb.SubmissionID, &fb.VideoVersion, &fb.Timestamp,
		&boxJSON, &fb.Comment, &fb.Author, &attachmentURL, &attachmentName,
		&repliesJSON, &fb.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan feedback")
	}

	if err := json.Unmarshal([]byte(boxJSON), &fb.Box); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal box")
	}
	if err := json.Unmarshal([]byte(repliesJSON), &fb.Replies); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal replies")
	}
	fb.AttachmentURL = attachmentURL.String
	fb.AttachmentName = attachmentName.String
	return &fb, nil
}
