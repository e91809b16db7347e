package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/fleetsched", "fleetsched BoltDB data directory")
	dryRun     = flag.Bool("dry-run", false, "show what would be purged without making changes")
	backupPath = flag.String("backup", "", "path to back up the database before purging (default: <data-dir>/fleetsched.db.backup)")
)

const legacyBucket = "legacy_desired_state"

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("fleetsched legacy desired-state purge tool")
	log.Println("===========================================")

	dbPath := filepath.Join(*dataDir, "fleetsched.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("database not found at %s", dbPath)
	}

	log.Printf("database: %s", dbPath)
	log.Printf("dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("failed to create backup: %v", err)
		}
		log.Println("backup created")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := purgeLegacyState(db, *dryRun); err != nil {
		log.Fatalf("purge failed: %v", err)
	}
}

// purgeLegacyState drops the legacy_desired_state bucket entirely. The
// registry is the only source of truth the scheduling loop reads from;
// this bucket only ever fed the two-consecutive-sweep purge check in
// pkg/targetsched's legacy cleanup, never the registry itself, so once an
// operator has run enough ticks to trust that check has already retired
// every stale row, the bucket can be dropped without any resource losing
// scheduling state.
func purgeLegacyState(db *bolt.DB, dryRun bool) error {
	var rowCount int
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(legacyBucket))
		if b == nil {
			log.Println("no legacy_desired_state bucket found, nothing to purge")
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			rowCount++
			return nil
		})
	})
	if err != nil {
		return err
	}
	if rowCount == 0 {
		log.Println("legacy_desired_state bucket is empty, nothing to purge")
		return nil
	}
	log.Printf("found %d legacy desired-state rows", rowCount)

	if dryRun {
		log.Printf("[dry run] would delete bucket %q (%d rows)", legacyBucket, rowCount)
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(legacyBucket)); err != nil {
			return fmt.Errorf("delete bucket %s: %w", legacyBucket, err)
		}
		log.Printf("deleted bucket %q (%d rows)", legacyBucket, rowCount)
		return nil
	})
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
