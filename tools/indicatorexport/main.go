// Command indicatorexport writes the latest computed indicators for a
// point to an XLSX workbook.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	indicatorrepo "agromet-cloud/internal/indicators/infrastructure/postgres"
	"agromet-cloud/internal/indicators/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	pointID := flag.Int64("point", 0, "point id to export")
	out := flag.String("out", "indicators.xlsx", "output file path")
	flag.Parse()

	if *pointID <= 0 {
		log.Fatal("-point is required")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stored, err := indicatorrepo.NewIndicatorRepository(db).ListLatest(ctx, *pointID)
	if err != nil {
		log.Fatalf("list indicators error: %v", err)
	}
	if len(stored) == 0 {
		log.Fatalf("no indicators for point %d", *pointID)
	}

	rows := make([]interfaces.IndicatorRow, 0, len(stored))
	for _, s := range stored {
		rows = append(rows, interfaces.IndicatorRow{
			PointID:      s.PointID,
			Code:         s.Code,
			Params:       s.Params,
			Value:        s.Value,
			CalculatedAt: s.CalculatedAt,
		})
	}

	data, err := interfaces.BuildIndicatorXLSX(rows)
	if err != nil {
		log.Fatalf("build workbook error: %v", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write %s error: %v", *out, err)
	}
	log.Printf("wrote %s (%d indicators)", *out, len(rows))
}
