package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kotgame/kot-server-go/internal/game/cards"
	"gopkg.in/yaml.v3"
)

// Column order of the CSV export. The first row is a header.
const (
	colTitle = iota
	colCost
	colKind
	colHP
	colVictoryPoints
	colTargets
	colText
	columnCount
)

var columnNames = [columnCount]string{"title", "cost", "kind", "hp", "victory_points", "targets", "text"}

func main() {
	// Get CSV file path from args or use default
	csvPath := "data/cards.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	outPath := "internal/game/cards/cards.yaml"
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Card Catalog Import ===")
	fmt.Printf("CSV file: %s\n", absPath)

	file, err := os.Open(absPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) < 2 {
		log.Fatal("CSV file is empty or has no data rows")
	}

	fmt.Printf("Found %d cards in CSV\n", len(records)-1)

	parsed := make([]cards.Card, 0, len(records)-1)
	skipped := 0
	for i, record := range records[1:] {
		card, err := parseRecord(record, i+2)
		if err != nil {
			log.Printf("Warning: Skipping %v", err)
			skipped++
			continue
		}
		parsed = append(parsed, card)
	}

	data, err := yaml.Marshal(map[string][]cards.Card{"cards": parsed})
	if err != nil {
		log.Fatalf("Failed to encode catalog: %v", err)
	}

	// Reject anything the server would refuse to load.
	catalog, err := cards.Parse(data)
	if err != nil {
		log.Fatalf("Catalog is invalid: %v", err)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write catalog: %v", err)
	}

	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("✓ Wrote %d cards to %s\n", catalog.Len(), outPath)
	if skipped > 0 {
		fmt.Printf("✗ Skipped %d rows\n", skipped)
	}
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Point game.catalog_path at %s, or rebuild to embed it\n", outPath)
}

// parseRecord converts one CSV row. row is the 1-based line number used in
// errors.
func parseRecord(record []string, row int) (cards.Card, error) {
	if len(record) < columnCount {
		return cards.Card{}, fmt.Errorf("row %d: insufficient columns", row)
	}
	cost, err := strconv.Atoi(strings.TrimSpace(record[colCost]))
	if err != nil {
		return cards.Card{}, fmt.Errorf("row %d column %s: %w", row, columnNames[colCost], err)
	}
	card := cards.Card{
		Title:   strings.TrimSpace(record[colTitle]),
		Cost:    cost,
		Kind:    cards.EffectKind(strings.ToLower(strings.TrimSpace(record[colKind]))),
		Targets: cards.Target(strings.ToLower(strings.TrimSpace(record[colTargets]))),
		Text:    strings.TrimSpace(record[colText]),
	}
	if card.HP, err = parseOptionalInt(record, row, colHP); err != nil {
		return cards.Card{}, err
	}
	if card.VictoryPoints, err = parseOptionalInt(record, row, colVictoryPoints); err != nil {
		return cards.Card{}, err
	}
	return card, nil
}

// parseOptionalInt reads an integer cell. Only an empty cell means zero.
func parseOptionalInt(record []string, row, column int) (int, error) {
	cell := strings.TrimSpace(record[column])
	if cell == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0, fmt.Errorf("row %d column %s: %w", row, columnNames[column], err)
	}
	return n, nil
}
