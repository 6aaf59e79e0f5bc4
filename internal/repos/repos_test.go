package repos

import (
  "testing"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"
)

// openTestDB backs the repo tests with an in-memory sqlite database. The
// production schema is postgres; the tables here carry the same columns
// without the postgres-only defaults.
func openTestDB(t *testing.T) *gorm.DB {
  t.Helper()
  db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }

  ddl := []string{
    `CREATE TABLE scheme_document (
      id TEXT PRIMARY KEY,
      user_id TEXT NOT NULL,
      subject TEXT NOT NULL,
      level TEXT NOT NULL,
      version TEXT NOT NULL,
      entries TEXT,
      metadata TEXT,
      created_at DATETIME,
      updated_at DATETIME,
      deleted_at DATETIME
    )`,
    `CREATE TABLE scheme_generation_run (
      id TEXT PRIMARY KEY,
      user_id TEXT NOT NULL,
      scheme_id TEXT NOT NULL,
      status TEXT NOT NULL,
      stage TEXT NOT NULL,
      progress INTEGER NOT NULL DEFAULT 0,
      attempts INTEGER NOT NULL DEFAULT 0,
      error TEXT,
      request TEXT,
      metadata TEXT,
      last_error_at DATETIME,
      locked_at DATETIME,
      heartbeat_at DATETIME,
      created_at DATETIME,
      updated_at DATETIME,
      deleted_at DATETIME
    )`,
    `CREATE TABLE gateway_call_log (
      id TEXT PRIMARY KEY,
      run_id TEXT,
      role TEXT NOT NULL,
      model TEXT,
      prompt TEXT,
      response TEXT,
      success INTEGER NOT NULL DEFAULT 0,
      error TEXT,
      usage TEXT,
      created_at DATETIME,
      updated_at DATETIME
    )`,
  }
  for _, stmt := range ddl {
    if err := db.Exec(stmt).Error; err != nil {
      t.Fatalf("create table: %v", err)
    }
  }
  return db
}
