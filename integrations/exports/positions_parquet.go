package exports

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Beneficiary   string `parquet:"name=beneficiary, type=BYTE_ARRAY, convertedtype=UTF8"`
	Index         int64  `parquet:"name=index, type=INT64"`
	Origin        string `parquet:"name=origin, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalClaimed  string `parquet:"name=total_claimed, type=BYTE_ARRAY, convertedtype=UTF8"`
	Releasable    string `parquet:"name=releasable, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime     int64  `parquet:"name=start_time, type=INT64"`
	Cliff         int64  `parquet:"name=cliff_seconds, type=INT64"`
	Duration      int64  `parquet:"name=duration_seconds, type=INT64"`
	PeriodClaimed int64  `parquet:"name=period_claimed_seconds, type=INT64"`
	CreatedAt     int64  `parquet:"name=created_at, type=INT64"`
}

// WritePositionsParquet streams the rows to w as a SNAPPY-compressed parquet
// file. Amounts are kept as decimal strings.
func WritePositionsParquet(w io.Writer, rows []Row) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		pr := &parquetRow{
			Beneficiary:   row.Beneficiary,
			Index:         int64(row.Index),
			Origin:        row.Origin,
			Amount:        row.Amount,
			TotalClaimed:  row.TotalClaimed,
			Releasable:    row.Releasable,
			StartTime:     row.StartTime,
			Cliff:         row.Cliff,
			Duration:      row.Duration,
			PeriodClaimed: row.PeriodClaimed,
			CreatedAt:     row.CreatedAt,
		}
		if err := pw.Write(pr); err != nil {
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	return nil
}
