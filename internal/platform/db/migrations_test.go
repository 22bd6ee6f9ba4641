package db

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var referenceLine = regexp.MustCompile(`^\s*(\w+)\s+BIGINT\s+(NOT NULL\s+)?REFERENCES\s+(\w+)\(id\)(.*)$`)

// Nullable links from stock bookkeeping back to receipt documents must not
// block deleting a GRN or its lines.
func TestMigrationReceiptLinksSetNullOnDelete(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "000001_pharmacy_grn.up.sql"))
	require.NoError(t, err)

	receiptTables := map[string]bool{"purchase_entries": true, "purchase_items": true, "stock": true}
	checked := map[string]bool{}
	table := ""
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "CREATE TABLE") {
			fields := strings.Fields(line)
			table = fields[len(fields)-2]
			continue
		}
		m := referenceLine.FindStringSubmatch(line)
		if m == nil || m[2] != "" || !receiptTables[m[3]] {
			continue
		}
		checked[table+"."+m[1]] = true
		require.Contains(t, m[4], "ON DELETE SET NULL", "%s.%s", table, m[1])
	}
	require.Equal(t, map[string]bool{
		"stock.last_grn_id":                true,
		"purchase_items.stock_id":          true,
		"stock_movements.grn_id":           true,
		"stock_movements.purchase_item_id": true,
	}, checked)
}
