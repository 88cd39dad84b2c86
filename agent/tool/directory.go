package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

const maxSearchResults = 5

// DirectoryRecord is one business in the builtin directory.
type DirectoryRecord struct {
	contractx.BasicInfo
	Keywords       []string `json:"keywords,omitempty"`
	Reviews        []string `json:"reviews,omitempty"`
	WebsiteContent string   `json:"website_content,omitempty"`
}

type directoryTool struct {
	records []DirectoryRecord
}

func (t *directoryTool) Name() contractx.ToolName {
	return contractx.ToolSearch
}

func (t *directoryTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return contractx.ToolResponse{
			Error: "query is required",
		}, nil
	}

	var matched []DirectoryRecord
	queryLower := strings.ToLower(query)
	locationLower := strings.ToLower(strings.TrimSpace(req.Location))

	for _, rec := range t.records {
		if !matchesQuery(rec, queryLower) {
			continue
		}
		if locationLower != "" && !strings.Contains(strings.ToLower(rec.Location), locationLower) {
			continue
		}
		matched = append(matched, rec)
		if len(matched) == maxSearchResults {
			break
		}
	}

	if len(matched) == 0 {
		return contractx.ToolResponse{
			Error: fmt.Sprintf("no businesses found for %q", query),
		}, nil
	}

	entities := make([]contractx.BasicInfo, 0, len(matched))
	refs := make([]entityRef, 0, len(matched))
	for _, rec := range matched {
		entities = append(entities, rec.BasicInfo)
		refs = append(refs, entityRef{
			BasicInfo:      rec.BasicInfo,
			Reviews:        rec.Reviews,
			WebsiteContent: rec.WebsiteContent,
		})
	}

	fullOutput, err := json.Marshal(refsPayload{Entities: refs})
	if err != nil {
		return contractx.ToolResponse{}, fmt.Errorf("marshal search output: %w", err)
	}

	return contractx.ToolResponse{
		Success:    true,
		Entities:   entities,
		FullOutput: fullOutput,
	}, nil
}

func matchesQuery(rec DirectoryRecord, queryLower string) bool {
	if strings.Contains(strings.ToLower(rec.Name), queryLower) {
		return true
	}
	for _, c := range rec.Categories {
		if strings.Contains(strings.ToLower(c), queryLower) {
			return true
		}
	}
	for _, k := range rec.Keywords {
		if strings.Contains(queryLower, strings.ToLower(k)) || strings.Contains(strings.ToLower(k), queryLower) {
			return true
		}
	}
	return false
}

var builtinDirectory = []DirectoryRecord{
	{
		BasicInfo: contractx.BasicInfo{
			ID:          "biz-001",
			Name:        "Via 313 Pizza",
			Rating:      4.6,
			ReviewCount: 2841,
			Categories:  []string{"Pizza", "Italian"},
			PriceRange:  "$$",
			Phone:       "(512) 555-0117",
			Location:    "Austin, TX",
			Website:     "https://via313.example.com",
		},
		Keywords: []string{"pizza", "detroit style", "deep dish"},
		Reviews: []string{
			"The Detroit-style crust is incredible, best pizza in Austin hands down.",
			"Great service and amazing corner slices, will definitely come back.",
			"A bit of a wait on weekends but absolutely worth it.",
		},
		WebsiteContent: "Via 313 serves authentic Detroit-style pizza with caramelized cheese edges. Order online for pickup and delivery across Austin.",
	},
	{
		BasicInfo: contractx.BasicInfo{
			ID:          "biz-002",
			Name:        "Home Slice Pizza",
			Rating:      4.5,
			ReviewCount: 3560,
			Categories:  []string{"Pizza", "Sandwiches"},
			PriceRange:  "$$",
			Phone:       "(512) 555-0143",
			Location:    "Austin, TX",
			Website:     "https://homeslice.example.com",
		},
		Keywords: []string{"pizza", "new york style", "slice"},
		Reviews: []string{
			"Proper New York slices, thin and foldable. Loved it.",
			"The line moves fast and the staff is friendly.",
			"Decent pizza but parking around South Congress is terrible.",
		},
		WebsiteContent: "Home Slice Pizza is a neighborhood joint on South Congress serving NY-style pizza by the slice and whole pies until late.",
	},
	{
		BasicInfo: contractx.BasicInfo{
			ID:          "biz-003",
			Name:        "Bufalina",
			Rating:      4.4,
			ReviewCount: 1207,
			Categories:  []string{"Pizza", "Wine Bar"},
			PriceRange:  "$$$",
			Phone:       "(512) 555-0182",
			Location:    "Austin, TX",
			Website:     "https://bufalina.example.com",
		},
		Keywords: []string{"pizza", "neapolitan", "wine"},
		Reviews: []string{
			"Beautiful Neapolitan pies and a thoughtful natural wine list.",
			"Crust was soggy in the middle the night we went, disappointing for the price.",
			"Intimate space, excellent service.",
		},
		WebsiteContent: "Bufalina pairs wood-fired Neapolitan pizza with natural wines in a cozy East Austin dining room.",
	},
	{
		BasicInfo: contractx.BasicInfo{
			ID:          "biz-004",
			Name:        "Franklin Barbecue",
			Rating:      4.7,
			ReviewCount: 5102,
			Categories:  []string{"Barbecue"},
			PriceRange:  "$$",
			Phone:       "(512) 555-0126",
			Location:    "Austin, TX",
			Website:     "https://franklinbbq.example.com",
		},
		Keywords: []string{"bbq", "barbecue", "brisket"},
		Reviews: []string{
			"The brisket lives up to every bit of the hype.",
			"Waited four hours. The food is great but no meal is worth that line.",
			"Staff handed out drinks in the queue, classy touch.",
		},
		WebsiteContent: "Franklin Barbecue smokes central Texas brisket, ribs, and sausage daily until sold out.",
	},
	{
		BasicInfo: contractx.BasicInfo{
			ID:          "biz-005",
			Name:        "Blue Bottle Coffee",
			Rating:      4.2,
			ReviewCount: 980,
			Categories:  []string{"Coffee & Tea", "Cafe"},
			PriceRange:  "$$",
			Phone:       "(415) 555-0139",
			Location:    "San Francisco, CA",
			Website:     "https://bluebottle.example.com",
		},
		Keywords: []string{"coffee", "espresso", "cafe"},
		Reviews: []string{
			"Consistently excellent pour-overs.",
			"Overpriced for what it is, but the espresso is solid.",
			"Nice minimal space, gets crowded in the morning.",
		},
		WebsiteContent: "Blue Bottle Coffee roasts single-origin beans and serves espresso drinks in a minimalist cafe.",
	},
}
