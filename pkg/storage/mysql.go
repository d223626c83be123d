package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/go-sql-driver/mysql"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/models"
)

const createAuditTable = `
    CREATE TABLE IF NOT EXISTS login_audit (
        id             BIGINT AUTO_INCREMENT PRIMARY KEY,
        event_id       CHAR(36)     NOT NULL UNIQUE,
        client_ip      VARCHAR(64)  NOT NULL,
        user_agent     TEXT,
        identity       VARCHAR(128) NOT NULL,
        role           VARCHAR(64)  NOT NULL,
        city           VARCHAR(128),
        country        VARCHAR(128),
        isp            VARCHAR(255),
        features       JSON         NOT NULL,
        classification VARCHAR(16)  NOT NULL,
        event_time     DATETIME(6)  NOT NULL,
        created_at     TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
    )
`

type MySQLSink struct {
	db *sql.DB
}

func NewMySQLSink(dsn string, maxIdle, maxOpen int) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)
	return &MySQLSink{db: db}, nil
}

// EnsureSchema creates the audit table when it does not exist.
func (s *MySQLSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createAuditTable)
	return err
}

func (s *MySQLSink) Name() string { return "mysql" }

func (s *MySQLSink) Write(ctx context.Context, rec *models.AuditRecord) error {
	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO login_audit (
            event_id, client_ip, user_agent, identity, role,
            city, country, isp, features, classification, event_time
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	result, err := s.db.ExecContext(ctx, query,
		rec.EventID,
		rec.Raw.IP,
		rec.Raw.UserAgent,
		rec.Raw.Identity,
		rec.Raw.Role,
		rec.Enrichment.City,
		rec.Enrichment.Country,
		rec.Enrichment.ISP,
		featuresJSON,
		string(rec.Classification),
		rec.Timestamp,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	logger.Log.Debugf("audit row saved: event=%s rows=%d", rec.EventID, affected)
	return nil
}

func (s *MySQLSink) Close() error {
	return s.db.Close()
}
