package service

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/repository"
)

const archiveSettingPrefix = "archive."

// SettingService reads and writes the archive retention settings.
type SettingService struct {
	settingRepo *repository.SettingRepository
	log         zerolog.Logger
}

// NewSettingService creates a new SettingService.
func NewSettingService(settingRepo *repository.SettingRepository, log zerolog.Logger) *SettingService {
	return &SettingService{
		settingRepo: settingRepo,
		log:         log.With().Str("component", "setting_service").Logger(),
	}
}

// ArchiveSettingsFromMap reads settings from stored key/value pairs.
// Missing or malformed values keep their defaults.
func ArchiveSettingsFromMap(values map[string]string) model.ArchiveSettings {
	out := model.DefaultArchiveSettings
	read := func(key string, dst *int) {
		if n, err := strconv.Atoi(values[key]); err == nil && n >= 0 {
			*dst = n
		}
	}
	read(model.SettingAutoArchiveAfterDays, &out.AutoArchiveAfterDays)
	read(model.SettingDeleteArchivedAfterDays, &out.DeleteArchivedAfterDays)
	read(model.SettingDeleteClosedAfterDays, &out.DeleteClosedAfterDays)
	return out
}

// ArchiveSettingsToMap is the inverse of ArchiveSettingsFromMap.
func ArchiveSettingsToMap(s model.ArchiveSettings) map[string]string {
	return map[string]string{
		model.SettingAutoArchiveAfterDays:    strconv.Itoa(s.AutoArchiveAfterDays),
		model.SettingDeleteArchivedAfterDays: strconv.Itoa(s.DeleteArchivedAfterDays),
		model.SettingDeleteClosedAfterDays:   strconv.Itoa(s.DeleteClosedAfterDays),
	}
}

// GetArchiveSettings returns the stored archive settings.
func (s *SettingService) GetArchiveSettings(ctx context.Context) (model.ArchiveSettings, error) {
	settings, err := s.settingRepo.GetByPrefix(ctx, archiveSettingPrefix)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load archive settings")
		return model.ArchiveSettings{}, err
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}
	return ArchiveSettingsFromMap(values), nil
}

// UpdateArchiveSettings stores all archive settings atomically.
func (s *SettingService) UpdateArchiveSettings(ctx context.Context, settings model.ArchiveSettings) error {
	if err := s.settingRepo.UpsertMany(ctx, ArchiveSettingsToMap(settings)); err != nil {
		s.log.Error().Err(err).Msg("failed to update archive settings")
		return err
	}
	s.log.Info().
		Int("auto_archive_after_days", settings.AutoArchiveAfterDays).
		Int("delete_archived_after_days", settings.DeleteArchivedAfterDays).
		Int("delete_closed_after_days", settings.DeleteClosedAfterDays).
		Msg("Archive settings updated")
	return nil
}
