package guildconfig

import (
	"strconv"

	"github.com/BurntSushi/toml"

	"chatvault/internal/archive"
)

// table is the on-disk layout of the guild configuration file:
//
//	[guilds."123456789"]
//	guild_id = 123456789
//	vault_path = "vaults"
//	...
type table struct {
	Guilds map[string]guildRecord `toml:"guilds"`
}

// guildRecord mirrors archive.GuildConfig field for field.
type guildRecord struct {
	GuildID          int64   `toml:"guild_id"`
	VaultPath        string  `toml:"vault_path"`
	ExportMode       string  `toml:"export_mode"`
	Timezone         string  `toml:"timezone"`
	IncludeChannels  []int64 `toml:"include_channels"`
	ExcludeChannels  []int64 `toml:"exclude_channels"`
	AdminRoleID      *int64  `toml:"admin_role_id,omitempty"`
	FilenameTemplate string  `toml:"filename_template"`
	CustomPeriodDays int     `toml:"custom_period_days"`
}

func toRecord(cfg archive.GuildConfig) guildRecord {
	c := cfg.Clone()
	return guildRecord{
		GuildID:          c.GuildID,
		VaultPath:        c.VaultPath,
		ExportMode:       string(c.ExportMode),
		Timezone:         c.Timezone,
		IncludeChannels:  c.IncludeChannels,
		ExcludeChannels:  c.ExcludeChannels,
		AdminRoleID:      c.AdminRoleID,
		FilenameTemplate: c.FilenameTemplate,
		CustomPeriodDays: c.CustomPeriodDays,
	}
}

func fromRecord(r guildRecord) archive.GuildConfig {
	cfg := archive.GuildConfig{
		GuildID:          r.GuildID,
		VaultPath:        r.VaultPath,
		ExportMode:       archive.ExportMode(r.ExportMode),
		Timezone:         r.Timezone,
		IncludeChannels:  r.IncludeChannels,
		ExcludeChannels:  r.ExcludeChannels,
		AdminRoleID:      r.AdminRoleID,
		FilenameTemplate: r.FilenameTemplate,
		CustomPeriodDays: r.CustomPeriodDays,
	}
	if len(cfg.IncludeChannels) == 0 {
		cfg.IncludeChannels = nil
	}
	if len(cfg.ExcludeChannels) == 0 {
		cfg.ExcludeChannels = nil
	}
	return cfg.Clone()
}

// decodeTable turns a decoded table into configs keyed by guild ID. The
// table key wins over a record's guild_id. Fields missing from a record take
// their default value; entries whose key is not a guild ID are returned in
// skipped.
func decodeTable(t table, md toml.MetaData) (configs map[int64]archive.GuildConfig, skipped []string) {
	configs = make(map[int64]archive.GuildConfig, len(t.Guilds))
	for key, rec := range t.Guilds {
		guildID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}

		defined := func(field string) bool { return md.IsDefined("guilds", key, field) }
		def := archive.NewGuildConfig(guildID)
		rec.GuildID = guildID
		if !defined("vault_path") {
			rec.VaultPath = def.VaultPath
		}
		if !defined("export_mode") {
			rec.ExportMode = string(def.ExportMode)
		}
		if !defined("timezone") {
			rec.Timezone = def.Timezone
		}
		if !defined("filename_template") {
			rec.FilenameTemplate = def.FilenameTemplate
		}
		if !defined("custom_period_days") {
			rec.CustomPeriodDays = def.CustomPeriodDays
		}

		configs[guildID] = fromRecord(rec)
	}
	return configs, skipped
}

func encodeTable(configs map[int64]archive.GuildConfig) table {
	t := table{Guilds: make(map[string]guildRecord, len(configs))}
	for id, cfg := range configs {
		t.Guilds[strconv.FormatInt(id, 10)] = toRecord(cfg)
	}
	return t
}
