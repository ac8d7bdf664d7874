package app

import (
	"fmt"
	"sort"
	"strings"

	"chatvault/internal/archive"
)

// Operation tracks the CLI command being run. It lives in memory with
// ID 0 until a mutating command persists it to the history database.
type Operation struct {
	ID         int64
	GuildID    int64
	Operation  string
	Parameters string
	Status     string
}

// NewOperation creates an unpersisted operation that will finish as a success
// unless an error is recorded.
func NewOperation(operation string) *Operation {
	return &Operation{Operation: operation, Status: archive.StatusSuccess}
}

// Persisted reports whether the operation has a history record.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = archive.StatusError
	}
	return err
}

// params renders key/value pairs as "k=v" joined by spaces, in key order.
// Empty values are left out.
func params(kv map[string]string) string {
	keys := make([]string, 0, len(kv))
	for k, v := range kv {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + kv[k]
	}
	return strings.Join(parts, " ")
}

// describeUpdate lists the fields a ConfigUpdate changes, for the history.
func describeUpdate(u archive.ConfigUpdate) string {
	kv := map[string]string{}
	if u.VaultPath != nil {
		kv["vault_path"] = *u.VaultPath
	}
	if u.ExportMode != nil {
		kv["export_mode"] = string(*u.ExportMode)
	}
	if u.Timezone != nil {
		kv["timezone"] = *u.Timezone
	}
	if u.IncludeChannels != nil {
		kv["include_channels"] = joinIDs(*u.IncludeChannels)
	}
	if u.ExcludeChannels != nil {
		kv["exclude_channels"] = joinIDs(*u.ExcludeChannels)
	}
	if u.AdminRoleID != nil {
		kv["admin_role_id"] = "none"
		if *u.AdminRoleID != nil {
			kv["admin_role_id"] = fmt.Sprint(**u.AdminRoleID)
		}
	}
	if u.FilenameTemplate != nil {
		kv["filename_template"] = *u.FilenameTemplate
	}
	if u.CustomPeriodDays != nil {
		kv["custom_period_days"] = fmt.Sprint(*u.CustomPeriodDays)
	}
	return params(kv)
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
