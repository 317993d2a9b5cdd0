package makecode

// BlockRecord is the portable form of a CanonicalBlock: the catalog
// identifier plus the detection it resolved from. Records round-trip
// through storage and rebuild into canonical blocks against the loaded
// catalog, so a persisted submission can be re-rendered without re-running
// recognition.
type BlockRecord struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Box        Box     `json:"box"`
}

// BlockRecords flattens the result's canonical blocks for persistence and
// transport.
func (r Result) BlockRecords() []BlockRecord {
	records := make([]BlockRecord, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		if b.Def == nil {
			continue
		}
		records = append(records, BlockRecord{
			ID:         b.Def.ID,
			Text:       b.Label.Text,
			Confidence: b.Label.Confidence,
			Box:        b.Label.Box,
		})
	}
	return records
}

// ResolveRecords turns stored records back into canonical blocks. Records
// whose identifier no longer resolves against the catalog are skipped; the
// rest keep their stored order.
func (c *Catalog) ResolveRecords(records []BlockRecord) []CanonicalBlock {
	blocks := make([]CanonicalBlock, 0, len(records))
	for i, rec := range records {
		def, ok := c.Lookup(rec.ID)
		if !ok {
			continue
		}
		blocks = append(blocks, CanonicalBlock{
			Def: def,
			Label: DetectedLabel{
				Text:       rec.Text,
				Confidence: rec.Confidence,
				Box:        rec.Box,
			},
			Index: i,
		})
	}
	return blocks
}
