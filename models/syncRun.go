package models

import (
	"context"
	"time"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
)

const (
	ConnectionStatusConnected    = "connected"
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusError        = "error"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)

// PosConnection holds the POS API credential and the sync cursor for this
// installation. One row per account.
type PosConnection struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	AccountName       string     `gorm:"size:100" json:"account_name"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	AuthToken         string     `gorm:"size:255" json:"-"`
	SettingsJSON      []byte     `gorm:"type:json" json:"settings"`
	CursorStateJSON   []byte     `gorm:"type:json" json:"cursor_state"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	LastSuccessSyncAt *time.Time `json:"last_success_sync_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRun struct {
	ID              uint       `gorm:"primary_key" json:"id"`
	ConnectionId    uint       `gorm:"index;not null" json:"connection_id"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy     string     `gorm:"size:20" json:"triggered_by"`
	ModulesJSON     []byte     `gorm:"type:json" json:"modules"`
	StatsJSON       []byte     `gorm:"type:json" json:"stats"`
	CursorStateJSON []byte     `gorm:"type:json" json:"cursor_state"`
	RecordsSynced   int        `json:"records_synced"`
	ErrorCount      int        `json:"error_count"`
	ParentRunId     *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	DurationMs      int64      `json:"duration_ms"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	EntityType  string    `gorm:"size:50" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetSyncRun(ctx context.Context, runId uint) (*SyncRun, error) {
	db := config.GetDB()
	var run SyncRun
	if err := db.WithContext(ctx).First(&run, runId).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func GetPosConnection(ctx context.Context, connectionId uint) (*PosConnection, error) {
	db := config.GetDB()
	var conn PosConnection
	if err := db.WithContext(ctx).First(&conn, connectionId).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}
