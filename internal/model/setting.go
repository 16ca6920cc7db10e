package model

import "time"

// AppSetting represents a key-value pair for global application configuration.
type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Setting keys backing ArchiveSettings.
const (
	SettingAutoArchiveAfterDays    = "archive.auto_archive_after_days"
	SettingDeleteArchivedAfterDays = "archive.delete_archived_after_days"
	SettingDeleteClosedAfterDays   = "archive.delete_closed_after_days"
)

// ArchiveSettings controls session retention. Zero disables a rule.
type ArchiveSettings struct {
	AutoArchiveAfterDays    int `json:"autoArchiveAfterDays" binding:"min=0,max=3650"`
	DeleteArchivedAfterDays int `json:"deleteArchivedAfterDays" binding:"min=0,max=3650"`
	DeleteClosedAfterDays   int `json:"deleteClosedAfterDays" binding:"min=0,max=3650"`
}

// DefaultArchiveSettings applies when nothing has been stored yet.
var DefaultArchiveSettings = ArchiveSettings{
	AutoArchiveAfterDays:    7,
	DeleteArchivedAfterDays: 180,
	DeleteClosedAfterDays:   0,
}
