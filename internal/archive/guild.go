package archive

import "slices"

// ExportMode selects how events are bucketed into archive files.
type ExportMode string

const (
	ModeSingle   ExportMode = "single"
	ModeDaily    ExportMode = "daily"
	ModeMonthly  ExportMode = "monthly"
	ModeCustom   ExportMode = "custom"
	ModeTemplate ExportMode = "template"
)

// Valid reports whether m is one of the known export modes.
// Unknown modes are still resolvable (they fall back to the filename template).
func (m ExportMode) Valid() bool {
	switch m {
	case ModeSingle, ModeDaily, ModeMonthly, ModeCustom, ModeTemplate:
		return true
	}
	return false
}

const (
	DefaultVaultPath        = "vaults"
	DefaultExportMode       = ModeMonthly
	DefaultTimezone         = "UTC"
	DefaultFilenameTemplate = "{channel}/{year}-{month}-{day}"
	DefaultCustomPeriodDays = 7
)

// GuildConfig is the archive configuration of a single guild.
type GuildConfig struct {
	GuildID          int64
	VaultPath        string
	ExportMode       ExportMode
	Timezone         string
	IncludeChannels  []int64
	ExcludeChannels  []int64
	AdminRoleID      *int64
	FilenameTemplate string
	CustomPeriodDays int
}

// NewGuildConfig returns the default configuration for a guild.
func NewGuildConfig(guildID int64) GuildConfig {
	return GuildConfig{
		GuildID:          guildID,
		VaultPath:        DefaultVaultPath,
		ExportMode:       DefaultExportMode,
		Timezone:         DefaultTimezone,
		FilenameTemplate: DefaultFilenameTemplate,
		CustomPeriodDays: DefaultCustomPeriodDays,
	}
}

// Clone returns a deep copy so callers cannot mutate a store's cached record.
func (c GuildConfig) Clone() GuildConfig {
	out := c
	out.IncludeChannels = slices.Clone(c.IncludeChannels)
	out.ExcludeChannels = slices.Clone(c.ExcludeChannels)
	if c.AdminRoleID != nil {
		id := *c.AdminRoleID
		out.AdminRoleID = &id
	}
	return out
}

// ShouldArchive applies the include/exclude channel filters.
// An empty include list means every channel is included.
func (c GuildConfig) ShouldArchive(channelID int64) bool {
	if len(c.IncludeChannels) > 0 && !slices.Contains(c.IncludeChannels, channelID) {
		return false
	}
	if len(c.ExcludeChannels) > 0 && slices.Contains(c.ExcludeChannels, channelID) {
		return false
	}
	return true
}

// ConfigUpdate names the fields to change on a GuildConfig.
// Nil fields are left untouched. The guild ID is immutable and has no field here.
type ConfigUpdate struct {
	VaultPath        *string
	ExportMode       *ExportMode
	Timezone         *string
	IncludeChannels  *[]int64
	ExcludeChannels  *[]int64
	AdminRoleID      **int64
	FilenameTemplate *string
	CustomPeriodDays *int
}

// Apply returns a copy of cfg with every present field of u applied.
func (u ConfigUpdate) Apply(cfg GuildConfig) GuildConfig {
	out := cfg.Clone()
	if u.VaultPath != nil {
		out.VaultPath = *u.VaultPath
	}
	if u.ExportMode != nil {
		out.ExportMode = *u.ExportMode
	}
	if u.Timezone != nil {
		out.Timezone = *u.Timezone
	}
	if u.IncludeChannels != nil {
		out.IncludeChannels = slices.Clone(*u.IncludeChannels)
	}
	if u.ExcludeChannels != nil {
		out.ExcludeChannels = slices.Clone(*u.ExcludeChannels)
	}
	if u.AdminRoleID != nil {
		out.AdminRoleID = nil
		if *u.AdminRoleID != nil {
			id := **u.AdminRoleID
			out.AdminRoleID = &id
		}
	}
	if u.FilenameTemplate != nil {
		out.FilenameTemplate = *u.FilenameTemplate
	}
	if u.CustomPeriodDays != nil {
		out.CustomPeriodDays = *u.CustomPeriodDays
	}
	return out
}

// Empty reports whether the update carries no changes.
func (u ConfigUpdate) Empty() bool {
	return u == ConfigUpdate{}
}

// ConfigStore persists one GuildConfig per guild.
type ConfigStore interface {
	// Get returns the guild's configuration, creating and persisting the
	// default record on first access.
	Get(guildID int64) GuildConfig

	// Update applies the present fields of u, persists the full table and
	// returns the updated record.
	Update(guildID int64, u ConfigUpdate) (GuildConfig, error)

	// All returns every known configuration ordered by guild ID.
	All() []GuildConfig
}
