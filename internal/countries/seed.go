package countries

import (
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ISO 3166-1 alpha-2 codes and names
//
//go:embed assets/countries.csv
var countriesCsv string

// Seed inserts every country from the embedded list that is not stored yet.
func Seed(ctx context.Context, repo countriesRepo) (int, error) {
	return SeedFrom(ctx, repo, csv.NewReader(strings.NewReader(countriesCsv)))
}

// SeedFrom reads CODE,NAME records (with a header line) and inserts the missing ones.
// Returns the number of added countries.
func SeedFrom(ctx context.Context, repo countriesRepo, countriesCsvReader *csv.Reader) (int, error) {
	log.Debugln("reading countries CSV ...")

	countriesCsvReader.FieldsPerRecord = 2
	header, err := countriesCsvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("read countries csv header: %w", err)
	}
	if strings.ToLower(header[0]) != "code" {
		return 0, fmt.Errorf("unexpected countries csv header: %s", header)
	}

	added, total := 0, 0
	for {
		record, err := countriesCsvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, err
		}

		// CODE,NAME
		code := strings.ToUpper(strings.TrimSpace(record[0]))
		name := strings.TrimSpace(record[1])
		if code == "" || name == "" {
			return added, fmt.Errorf("invalid country record: %s", record)
		}

		total++
		inserted, err := repo.Insert(ctx, &Country{Code: code, Name: name})
		if err != nil {
			return added, fmt.Errorf("insert country %s: %w", code, err)
		}
		if inserted {
			added++
		}
	}

	log.Printf("countries seeded: %d new, %d total in list", added, total)
	return added, nil
}
