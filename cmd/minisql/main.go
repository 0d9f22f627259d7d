// minisql is a maintenance CLI for a MiniSQL database file: seed it with
// sample tables and rows, dump a raw page, or walk an index's node
// structure. There is no SQL front end here — each subcommand drives the
// storage core directly, the way the teacher's cmd/seed and
// cmd/inspect_idx drive their own storage layers directly.
//
// Usage:
//
//	minisql seed -dir ./data
//	minisql stats -dir ./data
//	minisql dump-page -dir ./data -page 3
//	minisql inspect-index -dir ./data -table students -index pk_students
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/EasonMa1135/MiniSQL-Database-System/config"
	"github.com/EasonMa1135/MiniSQL-Database-System/engine"
	"github.com/EasonMa1135/MiniSQL-Database-System/storage_engine/page"
	"github.com/EasonMa1135/MiniSQL-Database-System/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "seed":
		err = runSeed(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "dump-page":
		err = runDumpPage(os.Args[2:])
	case "inspect-index":
		err = runInspectIndex(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "minisql %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: minisql <seed|stats|dump-page|inspect-index> [flags]")
}

// runSeed creates a database with a sample students table and three rows, the
// way the teacher's cmd/seed bootstraps "demp" directly against its own
// storage layer instead of going through a SQL front end.
func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dir := fs.String("dir", "./data", "database directory")
	fs.Parse(args)

	cfg := config.New().WithDataDir(*dir)
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	studentsSchema := types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.ColumnTypeInt, PrimaryKey: true},
		{Name: "name", Type: types.ColumnTypeChar, Length: 32},
		{Name: "age", Type: types.ColumnTypeInt, Nullable: true},
	}}
	students, err := e.CreateTable("students", studentsSchema)
	if err != nil {
		return err
	}

	rows := []types.Row{
		{Values: []types.Value{{Int: 1}, {Char: "Alice"}, {Int: 20}}},
		{Values: []types.Value{{Int: 2}, {Char: "Bob"}, {Int: 21}}},
		{Values: []types.Value{{Int: 3}, {Char: "Carol"}, {IsNull: true}}},
	}
	for _, row := range rows {
		if _, err := students.InsertRow(row); err != nil {
			return err
		}
	}

	fmt.Printf("seeded %s: table students (%d rows), index pk_students\n", *dir, len(rows))
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dir := fs.String("dir", "./data", "database directory")
	fs.Parse(args)

	cfg := config.New().WithDataDir(*dir)
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	s := e.Stats()
	fmt.Printf("capacity=%d resident=%d pinned=%d\n", s.Capacity, s.Resident, s.Pinned)
	fmt.Println("tables:")
	for _, name := range e.Catalog().ListTables() {
		rec, err := e.Catalog().GetTable(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %s: %d columns, %d indexes, first page %d\n", rec.Name, len(rec.Schema.Columns), len(rec.Indexes), rec.FirstPageID)
	}
	return nil
}

// runDumpPage prints a raw page's type tag and a hex dump of its first
// 256 bytes, bypassing any type-specific decoder — useful when a page's
// type tag itself is suspect.
func runDumpPage(args []string) error {
	fs := flag.NewFlagSet("dump-page", flag.ExitOnError)
	dir := fs.String("dir", "./data", "database directory")
	pageID := fs.Uint("page", 0, "logical page ID to dump")
	fs.Parse(args)

	cfg := config.New().WithDataDir(*dir)
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	buf := make([]byte, page.Size)
	if err := e.DumpPage(uint32(*pageID), buf); err != nil {
		return err
	}

	fmt.Printf("page %d: type=%d\n", *pageID, page.Type(buf[page.TypeOffset]))
	for off := 0; off < len(buf) && off < 256; off += 16 {
		fmt.Printf("  %04x  % x\n", off, buf[off:off+16])
	}
	return nil
}

func runInspectIndex(args []string) error {
	fs := flag.NewFlagSet("inspect-index", flag.ExitOnError)
	dir := fs.String("dir", "./data", "database directory")
	tableName := fs.String("table", "", "table name")
	indexName := fs.String("index", "", "index name")
	fs.Parse(args)

	if *tableName == "" || *indexName == "" {
		return fmt.Errorf("-table and -index are required")
	}

	cfg := config.New().WithDataDir(*dir)
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	table, err := e.OpenTable(*tableName)
	if err != nil {
		return err
	}
	tree, ok := table.Index(*indexName)
	if !ok {
		return fmt.Errorf("table %q has no index %q", *tableName, *indexName)
	}

	fmt.Printf("index %s.%s:\n", *tableName, *indexName)
	return tree.DebugDump(os.Stdout)
}
