// Command catalog_report prints a JSON summary of the block catalog:
// per-category block counts, container/leaf split, and synonym coverage.
// Useful when editing catalog.yaml to spot categories with thin synonym
// tables (those are the blocks OCR misses most).
//
// Usage: go run ./scripts [catalog.yaml]
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/yungbote/blockbridge-backend/internal/makecode"
)

type categoryReport struct {
	Category   string   `json:"category"`
	Blocks     int      `json:"blocks"`
	Containers int      `json:"containers"`
	Leaves     int      `json:"leaves"`
	Synonyms   int      `json:"synonyms"`
	NoSynonyms []string `json:"blocks_without_synonyms,omitempty"`
}

type report struct {
	TotalBlocks     int              `json:"total_blocks"`
	TotalContainers int              `json:"total_containers"`
	TotalSynonyms   int              `json:"total_synonyms"`
	Categories      []categoryReport `json:"categories"`
}

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	catalog, err := makecode.LoadCatalog(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		os.Exit(1)
	}

	byCategory := map[string]*categoryReport{}
	var out report
	for _, def := range catalog.Defs() {
		cr := byCategory[def.Category]
		if cr == nil {
			cr = &categoryReport{Category: def.Category}
			byCategory[def.Category] = cr
		}
		cr.Blocks++
		out.TotalBlocks++
		if def.Role == makecode.RoleContainer {
			cr.Containers++
			out.TotalContainers++
		} else {
			cr.Leaves++
		}
		cr.Synonyms += len(def.Synonyms)
		out.TotalSynonyms += len(def.Synonyms)
		if len(def.Synonyms) == 0 {
			cr.NoSynonyms = append(cr.NoSynonyms, def.ID)
		}
	}

	for _, cr := range byCategory {
		out.Categories = append(out.Categories, *cr)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i].Category < out.Categories[j].Category
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
}
