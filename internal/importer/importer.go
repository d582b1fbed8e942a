package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"printstore/internal/domain"
	"printstore/internal/pricing"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog exports and inserts/updates products with their
// bulk price tiers.
//
// A row with a key starts a product. Rows with an empty key only carry tier
// columns and add a tier to the product above them.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

type csvRow struct {
	line      int
	ID        string
	Key       string
	Name      string
	Desc      string
	BasePrice string
	Currency  string
	ImageURL  string
	Tiers     []domain.BulkPriceTier
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if row == nil {
			continue
		}
		row.line = line

		if row.Key != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if current == nil {
			return imported, fmt.Errorf("line %d: tier row before any product", line)
		}
		current.Tiers = append(current.Tiers, row.Tiers...)
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Key == "" || row.Name == "" || row.BasePrice == "" || row.Currency == "" {
		return fmt.Errorf("invalid product row (missing required fields) for key %q", row.Key)
	}
	if row.ID != "" && len(row.ID) != 36 {
		return fmt.Errorf("invalid id for key %q: %s", row.Key, row.ID)
	}
	basePrice, err := parseAmount(row.BasePrice)
	if err != nil {
		return fmt.Errorf("invalid base price for key %q: %w", row.Key, err)
	}

	tiers := append([]domain.BulkPriceTier(nil), row.Tiers...)
	pricing.SortTiers(tiers)
	if err := pricing.ValidateTiers(tiers); err != nil {
		return fmt.Errorf("product %q (line %d): %w", row.Key, row.line, err)
	}

	p := domain.Product{
		ID:          row.ID,
		Key:         row.Key,
		Name:        row.Name,
		Description: row.Desc,
		BasePrice:   basePrice,
		Currency:    strings.ToUpper(row.Currency),
		ImageURL:    row.ImageURL,
		BulkTiers:   tiers,
	}

	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Key, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, error) {
	row := &csvRow{
		ID:        pick(record, index, "id"),
		Key:       pick(record, index, "key"),
		Name:      pick(record, index, "name"),
		Desc:      pick(record, index, "description"),
		BasePrice: pick(record, index, "basePrice"),
		Currency:  pick(record, index, "currency"),
		ImageURL:  pick(record, index, "imageUrl"),
	}

	minStr := pick(record, index, "tier.minQuantity")
	maxStr := pick(record, index, "tier.maxQuantity")
	priceStr := pick(record, index, "tier.unitPrice")

	if row.Key == "" && minStr == "" && maxStr == "" && priceStr == "" {
		return nil, nil
	}
	if minStr != "" || maxStr != "" || priceStr != "" {
		tier, err := parseTier(minStr, maxStr, priceStr)
		if err != nil {
			return nil, err
		}
		row.Tiers = []domain.BulkPriceTier{tier}
	}
	return row, nil
}

func parseTier(minStr, maxStr, priceStr string) (domain.BulkPriceTier, error) {
	minQty, err := strconv.Atoi(minStr)
	if err != nil {
		return domain.BulkPriceTier{}, fmt.Errorf("tier min quantity %q: %w", minStr, err)
	}
	maxQty, err := strconv.Atoi(maxStr)
	if err != nil {
		return domain.BulkPriceTier{}, fmt.Errorf("tier max quantity %q: %w", maxStr, err)
	}
	price, err := parseAmount(priceStr)
	if err != nil {
		return domain.BulkPriceTier{}, fmt.Errorf("tier unit price %q: %w", priceStr, err)
	}
	return domain.BulkPriceTier{MinQuantity: minQty, MaxQuantity: maxQty, UnitPrice: price}, nil
}

func parseAmount(v string) (float64, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, errors.New("amount must not be negative")
	}
	f, _ := d.Float64()
	return f, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
