package core

// Solution is one ranked selection of a solution pool.
type Solution struct {
	// SelectedIDs lists the selected projects in catalog order.
	SelectedIDs []string `json:"selected_ids"`

	// Objective is the model objective of the selection.
	Objective float64 `json:"objective"`

	// Rank is the 1-based position in the pool; objectives are non-increasing by rank.
	Rank int `json:"rank"`
}

// RegionSummary aggregates a selection per region.
type RegionSummary struct {
	Region  string  `json:"region"`
	Count   int     `json:"count"`
	Cost    float64 `json:"cost"`
	Benefit float64 `json:"benefit"`
}

// Summarize aggregates the selected projects by region, in sorted region order.
// Unknown ids are ignored.
func (c *Catalog) Summarize(selectedIDs []string) []RegionSummary {
	byRegion := make(map[string]*RegionSummary)
	for _, id := range selectedIDs {
		i, ok := c.index[id]
		if !ok {
			continue
		}
		p := &c.projects[i]
		s, ok := byRegion[p.Region]
		if !ok {
			s = &RegionSummary{Region: p.Region}
			byRegion[p.Region] = s
		}
		s.Count++
		s.Cost += p.Cost
		s.Benefit += p.Benefit
	}
	out := make([]RegionSummary, 0, len(byRegion))
	for _, region := range c.Regions() {
		if s, ok := byRegion[region]; ok {
			out = append(out, *s)
		}
	}
	return out
}
