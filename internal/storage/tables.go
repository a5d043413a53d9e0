package storage

// TenantScopedTables enumerates every domain table carrying a nullable
// tenant_id column. The orphan detector, backfill tool and purge job operate
// only over this fixed list; any other table name is rejected with
// ErrUnknownTable before a query is built.
var TenantScopedTables = []string{
	"users",
	"projects",
	"tasks",
	"time_entries",
	"chat_channels",
	"chat_messages",
	"crm_contacts",
	"crm_deals",
	"invoices",
	"documents",
}

// BackfillOrder lists the tenant-scoped tables in foreign-key dependency
// order, parents before referencing tables. New tables must be inserted by
// re-deriving the dependency position, not appended.
var BackfillOrder = []string{
	"users",
	"projects",
	"crm_contacts",
	"chat_channels",
	"tasks",
	"crm_deals",
	"time_entries",
	"chat_messages",
	"invoices",
	"documents",
}

// displayColumn maps a tenant-scoped table to the column shown next to the
// row id in orphan sample reports.
var displayColumn = map[string]string{
	"users":         "email",
	"projects":      "name",
	"tasks":         "title",
	"time_entries":  "description",
	"chat_channels": "name",
	"chat_messages": "body",
	"crm_contacts":  "email",
	"crm_deals":     "title",
	"invoices":      "number",
	"documents":     "name",
}

// validateTable rejects table names outside the enumerated list
func validateTable(table string) error {
	for _, t := range TenantScopedTables {
		if t == table {
			return nil
		}
	}
	return ErrUnknownTable
}
