package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"wbi/internal/atomicfile"
	"wbi/internal/model"
)

// Schema is the Arrow layout of an exported point. Optional fields are nullable.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "indicator_id", Type: arrow.BinaryTypes.String},
	{Name: "indicator_name", Type: arrow.BinaryTypes.String},
	{Name: "country_id", Type: arrow.BinaryTypes.String},
	{Name: "country_name", Type: arrow.BinaryTypes.String},
	{Name: "country_iso3", Type: arrow.BinaryTypes.String},
	{Name: "year", Type: arrow.PrimitiveTypes.Int64},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "unit", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "obs_status", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "decimal", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

func WriteParquet(path string, points []model.DataPoint) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return EncodeParquet(w, points)
	})
}

// EncodeParquet writes points as a single Snappy-compressed row group.
func EncodeParquet(w io.Writer, points []model.DataPoint) error {
	rec := buildRecord(memory.NewGoAllocator(), points)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// The parquet writer closes its sink; the caller owns w.
	writer, err := pqarrow.NewFileWriter(Schema, struct{ io.Writer }{w}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("export: create parquet writer: %w", err)
	}
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("export: write parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("export: close parquet writer: %w", err)
	}
	return nil
}

func buildRecord(mem memory.Allocator, points []model.DataPoint) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	strs := make([]*array.StringBuilder, 5)
	for i := range strs {
		strs[i] = b.Field(i).(*array.StringBuilder)
	}
	year := b.Field(5).(*array.Int64Builder)
	value := b.Field(6).(*array.Float64Builder)
	unit := b.Field(7).(*array.StringBuilder)
	status := b.Field(8).(*array.StringBuilder)
	decimal := b.Field(9).(*array.Int64Builder)

	for _, p := range points {
		strs[0].Append(p.IndicatorID)
		strs[1].Append(p.IndicatorName)
		strs[2].Append(p.CountryID)
		strs[3].Append(p.CountryName)
		strs[4].Append(p.CountryISO3)
		year.Append(int64(p.Year))

		if r := toRecord(p); r.Value != nil {
			value.Append(*r.Value)
		} else {
			value.AppendNull()
		}
		appendOptionalString(unit, p.Unit)
		appendOptionalString(status, p.ObsStatus)
		if p.Decimal != nil {
			decimal.Append(int64(*p.Decimal))
		} else {
			decimal.AppendNull()
		}
	}
	return b.NewRecord()
}

func appendOptionalString(b *array.StringBuilder, s *string) {
	if s == nil {
		b.AppendNull()
		return
	}
	b.Append(*s)
}
