package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// schema dijalankan per statement; driver mysql tidak menerima multi-statement
// tanpa multiStatements=true di DSN.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id            VARCHAR(36)  NOT NULL PRIMARY KEY,
  email         VARCHAR(255) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  created_at    DATETIME(3)  NOT NULL,
  UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS projects (
  id          VARCHAR(36)  NOT NULL PRIMARY KEY,
  user_id     VARCHAR(36)  NOT NULL,
  project_key VARCHAR(255) NOT NULL,
  name        VARCHAR(255) NOT NULL,
  created_at  DATETIME(3)  NOT NULL,
  KEY idx_projects_user (user_id, created_at),
  KEY idx_projects_key (project_key),
  CONSTRAINT fk_projects_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS analysis_runs (
  id            VARCHAR(36)  NOT NULL PRIMARY KEY,
  project_id    VARCHAR(36)  NOT NULL,
  project_key   VARCHAR(255) NOT NULL,
  issues_json   LONGTEXT     NOT NULL,
  issues_count  INT          NOT NULL DEFAULT 0,
  blocker       INT          NOT NULL DEFAULT 0,
  critical      INT          NOT NULL DEFAULT 0,
  major         INT          NOT NULL DEFAULT 0,
  minor         INT          NOT NULL DEFAULT 0,
  info          INT          NOT NULL DEFAULT 0,
  dashboard_url VARCHAR(512) NOT NULL DEFAULT '',
  created_at    DATETIME(3)  NOT NULL,
  KEY idx_runs_project (project_id, created_at),
  CONSTRAINT fk_runs_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS scan_errors (
  id          BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  project_id  VARCHAR(36)  NOT NULL,
  project_key VARCHAR(255) NOT NULL,
  phase       VARCHAR(32)  NOT NULL,
  reason      VARCHAR(64)  NOT NULL,
  message     TEXT         NOT NULL,
  details     TEXT         NOT NULL,
  created_at  DATETIME(3)  NOT NULL,
  KEY idx_scan_errors_project (project_id, created_at),
  CONSTRAINT fk_scan_errors_project FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
