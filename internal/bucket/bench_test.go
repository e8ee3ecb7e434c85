package bucket_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/model"
)

// Run with:
//
//	go test ./internal/bucket/ -bench=. -benchmem

// syntheticRecords builds n daily raw records, one in every 50 without a
// usable date.
func syntheticRecords(n int) []model.RawRecord {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	raws := make([]model.RawRecord, n)
	for i := range raws {
		d := start.AddDate(0, 0, i%730).Format("2006-01-02")
		if i%50 == 0 {
			d = "n/a"
		}
		raws[i] = model.RawRecord{
			"date":     d,
			"reports":  float64(i % 17),
			"approved": fmt.Sprintf("%d", i%5),
			"rejected": float64(i % 3),
		}
	}
	return raws
}

func BenchmarkDecode(b *testing.B) {
	raws := syntheticRecords(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bucket.Decode(raws, time.UTC)
	}
}

func BenchmarkBucketBy(b *testing.B) {
	recs := bucket.Decode(syntheticRecords(10000), time.UTC)
	for _, g := range []bucket.Granularity{bucket.Day, bucket.Week, bucket.Month} {
		b.Run(string(g), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = bucket.BucketBy(recs, g, now)
			}
		})
	}
}
