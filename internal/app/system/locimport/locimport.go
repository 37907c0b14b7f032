// Package locimport loads a state's location tree from YAML and upserts it,
// so reruns only add what is missing.
//
// The file shape is:
//
//	state: Telangana
//	districts:
//	  - name: Nalgonda
//	    mandals:
//	      - name: Narketpally
//	        villages: [Chervugattu, {name: Annaram, pincode: "508254"}]
//	    municipalities:
//	      - name: Miryalaguda
//	        villages: [Ward 1, Ward 2]
package locimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	"github.com/mewsorg/mews/internal/domain/models"
	"gopkg.in/yaml.v3"
)

type Tree struct {
	State     string     `yaml:"state"`
	Districts []District `yaml:"districts"`
}

type District struct {
	Name           string `yaml:"name"`
	Pincode        string `yaml:"pincode"`
	Mandals        []Area `yaml:"mandals"`
	Municipalities []Area `yaml:"municipalities"`
}

// Area is a mandal or a municipality.
type Area struct {
	Name     string    `yaml:"name"`
	Pincode  string    `yaml:"pincode"`
	Villages []Village `yaml:"villages"`
}

// Village accepts either a bare name or a {name, pincode} mapping.
type Village struct {
	Name    string `yaml:"name"`
	Pincode string `yaml:"pincode"`
}

func (v *Village) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v.Name = node.Value
		return nil
	}
	type plain Village
	return node.Decode((*plain)(v))
}

// Parse reads and checks a tree. Every node needs a name.
func Parse(r io.Reader) (Tree, error) {
	var t Tree
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return Tree{}, fmt.Errorf("parse location tree: %w", err)
	}
	if strings.TrimSpace(t.State) == "" {
		return Tree{}, errors.New("location tree: state is required")
	}
	for i, d := range t.Districts {
		if strings.TrimSpace(d.Name) == "" {
			return Tree{}, fmt.Errorf("location tree: district %d has no name", i+1)
		}
		for _, a := range append(append([]Area{}, d.Mandals...), d.Municipalities...) {
			if strings.TrimSpace(a.Name) == "" {
				return Tree{}, fmt.Errorf("location tree: %s has an unnamed mandal or municipality", d.Name)
			}
			for _, v := range a.Villages {
				if strings.TrimSpace(v.Name) == "" {
					return Tree{}, fmt.Errorf("location tree: %s/%s has an unnamed village", d.Name, a.Name)
				}
			}
		}
	}
	return t, nil
}

// Stats counts what Import saw and created, by location type.
type Stats struct {
	Seen    map[string]int
	Created map[string]int
}

func (s *Stats) add(typ string, created bool) {
	s.Seen[typ]++
	if created {
		s.Created[typ]++
	}
}

// Import upserts t below a state location with the tree's state name.
func Import(ctx context.Context, locs *locationstore.Store, t Tree) (Stats, error) {
	st := Stats{Seen: map[string]int{}, Created: map[string]int{}}

	state, created, err := locs.Upsert(ctx, t.State, models.LocationState, nil, "")
	if err != nil {
		return st, fmt.Errorf("state %s: %w", t.State, err)
	}
	st.add(models.LocationState, created)

	for _, d := range t.Districts {
		district, created, err := locs.Upsert(ctx, d.Name, models.LocationDistrict, &state.ID, d.Pincode)
		if err != nil {
			return st, fmt.Errorf("district %s: %w", d.Name, err)
		}
		st.add(models.LocationDistrict, created)

		if err := importAreas(ctx, locs, &st, district, d.Mandals, models.LocationMandal); err != nil {
			return st, err
		}
		if err := importAreas(ctx, locs, &st, district, d.Municipalities, models.LocationMunicipality); err != nil {
			return st, err
		}
	}
	return st, nil
}

func importAreas(ctx context.Context, locs *locationstore.Store, st *Stats, district models.Location, areas []Area, typ string) error {
	for _, a := range areas {
		area, created, err := locs.Upsert(ctx, a.Name, typ, &district.ID, a.Pincode)
		if err != nil {
			return fmt.Errorf("%s %s/%s: %w", strings.ToLower(typ), district.Name, a.Name, err)
		}
		st.add(typ, created)

		for _, v := range a.Villages {
			_, created, err := locs.Upsert(ctx, v.Name, models.LocationVillage, &area.ID, v.Pincode)
			if err != nil {
				return fmt.Errorf("village %s/%s/%s: %w", district.Name, a.Name, v.Name, err)
			}
			st.add(models.LocationVillage, created)
		}
	}
	return nil
}
