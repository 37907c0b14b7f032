// Package pincodes builds a DISTRICT-MANDAL-VILLAGE to pincode map from the
// India Post office directory and applies it to village locations.
package pincodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultSource is the public all-India pincode directory.
const DefaultSource = "https://raw.githubusercontent.com/saravanakumargn/All-India-Pincode-Directory/master/all-india-pincode-json-array.json"

// State is the only state kept from the directory.
const State = "TELANGANA"

var officeSuffix = regexp.MustCompile(`(?i)\s+[BSH]\.O\.?$`)

// Entry is one post office row. The upstream field names are mixed case.
type Entry struct {
	OfficeName string `json:"officename"`
	Pincode    any    `json:"pincode"`
	Taluk      string `json:"Taluk"`
	District   string `json:"Districtname"`
	State      string `json:"statename"`
}

// CleanVillage upper-cases an office name and drops its B.O/S.O/H.O suffix.
func CleanVillage(office string) string {
	v := strings.ToUpper(strings.TrimSpace(office))
	return strings.TrimSpace(officeSuffix.ReplaceAllString(v, ""))
}

// Key joins the three names the way the map is keyed.
func Key(district, mandal, village string) string {
	clean := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	return clean(district) + "-" + clean(mandal) + "-" + clean(village)
}

// Parse decodes the directory JSON array and keeps Telangana rows. Later
// rows win on key collisions. It returns the map and the number of rows
// kept before de-duplication.
func Parse(r io.Reader) (map[string]string, int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []Entry
	if err := dec.Decode(&rows); err != nil {
		return nil, 0, fmt.Errorf("decode pincode directory: %w", err)
	}

	out := make(map[string]string)
	kept := 0
	for _, e := range rows {
		if !strings.EqualFold(strings.TrimSpace(e.State), State) {
			continue
		}
		kept++
		district := strings.ToUpper(strings.TrimSpace(e.District))
		mandal := strings.ToUpper(strings.TrimSpace(e.Taluk))
		village := CleanVillage(e.OfficeName)
		pin := pincodeString(e.Pincode)
		if district == "" || mandal == "" || village == "" || pin == "" {
			continue
		}
		out[Key(district, mandal, village)] = pin
	}
	return out, kept, nil
}

// pincodeString accepts the directory's pincodes whether they arrive as
// numbers or strings.
func pincodeString(v any) string {
	switch p := v.(type) {
	case json.Number:
		return p.String()
	case string:
		return strings.TrimSpace(p)
	}
	return ""
}

// Result summarizes an Apply run.
type Result struct {
	Villages  int
	Matched   int
	Updated   int
	Unmatched []string
}

// Apply sets the pincode of every village whose district, mandal and name
// match an entry in pins. With dryRun nothing is written.
func Apply(ctx context.Context, locs *locationstore.Store, pins map[string]string, dryRun bool, logger *zap.Logger) (Result, error) {
	villages, err := locs.List(ctx, models.LocationVillage, nil)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, v := range villages {
		res.Villages++
		var district, mandal string
		for _, a := range v.Ancestors {
			switch a.Type {
			case models.LocationDistrict:
				district = a.Name
			case models.LocationMandal, models.LocationMunicipality:
				mandal = a.Name
			}
		}
		key := Key(district, mandal, v.Name)
		pin, ok := pins[key]
		if !ok {
			res.Unmatched = append(res.Unmatched, key)
			continue
		}
		res.Matched++
		if pin == v.Pincode {
			continue
		}
		if !dryRun {
			if err := locs.SetPincode(ctx, v.ID, pin); err != nil {
				return res, fmt.Errorf("set pincode on %s: %w", v.ID.Hex(), err)
			}
		}
		res.Updated++
		logger.Debug("pincode", zap.String("village", key), zap.String("pincode", pin), zap.Bool("dry_run", dryRun))
	}
	return res, nil
}
