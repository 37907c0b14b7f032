// Package memberid issues member ids of the form MEWS-YYYY-SS-DD-NNNNNN:
// year, state code, district code and a six-digit sequence that restarts
// for each state/district/year block.
package memberid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// DefaultStateCode is used when the member's state cannot be resolved.
	DefaultStateCode = "24"
	// UnknownDistrictCode is used for districts without an assigned code.
	UnknownDistrictCode = "00"
)

var stateCodes = map[string]string{
	"telangana": "24",
}

// District codes apply only within state 24, numbered alphabetically.
var telanganaDistrictCodes = map[string]string{
	"adilabad":                 "01",
	"bhadradri kothagudem":     "02",
	"hanumakonda":              "03",
	"hyderabad":                "04",
	"jagtial":                  "05",
	"jangaon":                  "06",
	"jayashankar bhupalpally":  "07",
	"jogulamba gadwal":         "08",
	"kamareddy":                "09",
	"karimnagar":               "10",
	"khammam":                  "11",
	"komaram bheem asifabad":   "12",
	"mahabubabad":              "13",
	"mahabubnagar":             "14",
	"mancherial":               "15",
	"medak":                    "16",
	"medchal-malkajgiri":       "17",
	"mulugu":                   "18",
	"nagarkurnool":             "19",
	"nalgonda":                 "20",
	"narayanpet":               "21",
	"nirmal":                   "22",
	"nizamabad":                "23",
	"peddapalli":               "24",
	"rajanna sircilla":         "25",
	"rangareddy":               "26",
	"sangareddy":               "27",
	"siddipet":                 "28",
	"suryapet":                 "29",
	"vikarabad":                "30",
	"wanaparthy":               "31",
	"warangal":                 "32",
	"yadadri bhuvanagiri":      "33",
}

// StateCode maps a state name to its two-digit code.
func StateCode(name string) string {
	if c, ok := stateCodes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return DefaultStateCode
}

// DistrictCode maps a district name to its code within stateCode.
func DistrictCode(stateCode, name string) string {
	if stateCode != "24" {
		return UnknownDistrictCode
	}
	if c, ok := telanganaDistrictCodes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return UnknownDistrictCode
}

// CounterKey is the id_counters key for a block.
func CounterKey(stateCode, districtCode string, year int) string {
	return fmt.Sprintf("%s-%s-%d", stateCode, districtCode, year)
}

// Format renders a member id.
func Format(year int, stateCode, districtCode string, seq int64) string {
	return fmt.Sprintf("MEWS-%d-%s-%s-%06d", year, stateCode, districtCode, seq)
}

// Locations resolves location documents.
type Locations interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Location, error)
}

// Counter hands out the next sequence number for a key.
type Counter interface {
	Next(ctx context.Context, key string) (int64, error)
}

// Generator issues ids backed by a counter collection.
type Generator struct {
	locs    Locations
	counter Counter
	now     func() time.Time
}

// New returns a Generator.
func New(locs Locations, counter Counter) *Generator {
	return &Generator{locs: locs, counter: counter, now: time.Now}
}

// Generate issues the next id for a member living at addr.
func (g *Generator) Generate(ctx context.Context, addr models.Address) (string, error) {
	stateName := addr.State
	var districtName string

	if addr.District != nil {
		if d, err := g.locs.Get(ctx, *addr.District); err == nil {
			districtName = d.Name
			if s, ok := d.AncestorOfType(models.LocationState); ok {
				stateName = s.Name
			} else if d.Parent != nil {
				if s, err := g.locs.Get(ctx, *d.Parent); err == nil {
					stateName = s.Name
				}
			}
		}
	}

	state := StateCode(stateName)
	district := DistrictCode(state, districtName)
	year := g.now().Year()

	seq, err := g.counter.Next(ctx, CounterKey(state, district, year))
	if err != nil {
		return "", fmt.Errorf("member id sequence: %w", err)
	}
	return Format(year, state, district, seq), nil
}
