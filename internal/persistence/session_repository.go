package persistence

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/IliaW/catalog-crawler/internal/model"
)

type SessionStorage interface {
	Start(sourceID int64) int64
	Complete(sessionID int64, recordsFound, pagesWalked int, status string, runErr error)
}

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start opens a crawl session. A zero id means the insert failed; Complete
// treats it as a no-op so the pipeline itself is unaffected.
func (sr *SessionRepository) Start(sourceID int64) int64 {
	var id int64
	err := sr.db.QueryRow(`INSERT INTO web_catalog.crawl_sessions (source_id, started_at, status)
		VALUES ($1, $2, $3) RETURNING id;`,
		sourceID, time.Now().UTC(), model.SessionRunning).Scan(&id)
	if err != nil {
		slog.Error("failed to open crawl session.", slog.Int64("source", sourceID),
			slog.String("err", err.Error()))
		return 0
	}

	return id
}

func (sr *SessionRepository) Complete(sessionID int64, recordsFound, pagesWalked int, status string, runErr error) {
	if sessionID == 0 {
		return
	}
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := sr.db.Exec(`UPDATE web_catalog.crawl_sessions
		SET completed_at = $1, records_found = $2, pages_walked = $3, status = $4, error = $5
		WHERE id = $6;`,
		time.Now().UTC(), recordsFound, pagesWalked, status, errText, sessionID)
	if err != nil {
		slog.Error("failed to close crawl session.", slog.Int64("session", sessionID),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("crawl session closed.", slog.Int64("session", sessionID), slog.String("status", status))
}
