package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// sqliteDrivers are exercised by every store test.
var sqliteDrivers = []string{"sqlite3", "sqlite"}

func testCatalog(t *testing.T) *metadata.Catalog {
	t.Helper()
	cat := metadata.NewCatalog()
	require.NoError(t, cat.AddOptionSet(&metadata.OptionSet{
		Name:    "category",
		Options: map[string]int64{"Tools": 1, "Toys": 2},
	}))
	require.NoError(t, cat.AddTable(&metadata.Table{
		Name:       "owner",
		Physical:   "OwnerBase",
		PrimaryKey: "ownerid",
		Columns: map[string]*metadata.Column{
			"ownerid": {Type: ir.TypeGuid},
			"name":    {Type: ir.TypeString},
		},
	}))
	require.NoError(t, cat.AddTable(&metadata.Table{
		Name:       "item",
		Physical:   "ItemBase",
		PrimaryKey: "itemid",
		Columns: map[string]*metadata.Column{
			"itemid":    {Type: ir.TypeGuid, Physical: "ItemId"},
			"name":      {Type: ir.TypeString, Physical: "Name"},
			"x":         {Type: ir.TypeDecimal},
			"y":         {Type: ir.TypeDecimal},
			"weight":    {Type: ir.TypeNumber},
			"active":    {Type: ir.TypeBoolean},
			"category":  {Type: ir.OptionSetType("category")},
			"madeon":    {Type: ir.TypeDate},
			"createdon": {Type: ir.TypeDateTime},
			"ownerid":   {Type: ir.RecordType("owner"), Target: "owner"},
		},
	}))
	require.NoError(t, cat.Validate())
	return cat
}

// itemID returns a fixed id; ids sort in n order.
func itemID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-7000-8000-%012d", n))
}

// createTestStore opens a store in a temp dir with both tables created.
func createTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenDriver(driver, path, testCatalog(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, "owner"))
	require.NoError(t, s.CreateTable(ctx, "item"))
	return s
}

// seedItems writes rows for the filter tests:
//
//	1: x=5 y=1 "Contoso"
//	2: x=5 y=0 "contour"
//	3: x=4 y=2 "Fabrikam"
//	4: x=5 y=blank, blank name
//	5: x=5 y=3 "Northwind"
func seedItems(t *testing.T, s *Store) {
	t.Helper()
	type seed struct {
		x, y string
		name string
	}
	seeds := []seed{{"5", "1", "Contoso"}, {"5", "0", "contour"}, {"4", "2", "Fabrikam"}, {"5", "", ""}, {"5", "3", "Northwind"}}

	rows := make([]ir.Record, len(seeds))
	for i, sd := range seeds {
		fields := map[string]ir.Value{
			"itemid": ir.Guid(itemID(i + 1)),
			"x":      ir.MustDecimal(sd.x),
		}
		if sd.y != "" {
			fields["y"] = ir.MustDecimal(sd.y)
		}
		if sd.name != "" {
			fields["name"] = ir.String(sd.name)
		}
		rows[i] = ir.Record{Table: "item", Fields: fields}
	}
	require.NoError(t, s.InsertAll(context.Background(), "item", rows))
}

func ids(tbl ir.Table) []uuid.UUID {
	out := make([]uuid.UUID, len(tbl.Rows))
	for i, r := range tbl.Rows {
		out[i] = uuid.UUID(r.Get("itemid").(ir.Guid))
	}
	return out
}

func fixedTime() time.Time {
	return time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
}
