package config

import (
	"fmt"
	"strings"

	"github.com/dshills/catalog-search/pkg/types"
)

// Endpoint is one public search surface. Each endpoint searches exactly one
// category and accepts only the filter fields listed in Filters.
type Endpoint struct {
	Name        string
	Description string
	Filters     []string
}

// EnvKey returns the environment variable holding the endpoint's category id,
// e.g. TUB_FILLERS_CATEGORY_ID for tub-fillers.
func (e Endpoint) EnvKey() string {
	return strings.ToUpper(strings.ReplaceAll(e.Name, "-", "_")) + "_CATEGORY_ID"
}

// Endpoints lists every search endpoint in registration order
var Endpoints = []Endpoint{
	{Name: "faucets", Description: "Search faucets. Optional hole spacing compatibility filter.", Filters: []string{types.FieldHoleSpacing}},
	{Name: "vanities", Description: "Search vanities. Optional maximum length filter.", Filters: []string{types.FieldLengthMax}},
	{Name: "lightings", Description: "Search lighting. Optional maximum length filter.", Filters: []string{types.FieldLengthMax}},
	{Name: "tiles", Description: "Search tiles. Optional placement locations filter.", Filters: []string{types.FieldLocations}},
	{Name: "shower-systems", Description: "Search shower systems. Optional tub spout filter.", Filters: []string{types.FieldHasTubSpout}},
	{Name: "tubs", Description: "Search tubs."},
	{Name: "shower-glasses", Description: "Search shower glass. Optional maximum length filter.", Filters: []string{types.FieldLengthMax}},
	{Name: "mirrors", Description: "Search mirrors. Optional maximum width filter.", Filters: []string{types.FieldWidthMax}},
	{Name: "toilets", Description: "Search toilets."},
	{Name: "paints", Description: "Search paints."},
	{Name: "lvps", Description: "Search luxury vinyl plank flooring."},
	{Name: "tub-fillers", Description: "Search tub fillers."},
	{Name: "towel-bars", Description: "Search towel bars."},
	{Name: "wallpapers", Description: "Search wallpapers."},
	{Name: "toilet-paper-holders", Description: "Search toilet paper holders."},
	{Name: "robe-hooks", Description: "Search robe hooks."},
	{Name: "towel-rings", Description: "Search towel rings."},
	{Name: "tub-doors", Description: "Search tub doors. Optional maximum length filter.", Filters: []string{types.FieldLengthMax}},
	{Name: "shelves", Description: "Search shelves."},
	{Name: "flooring", Description: "Search flooring: all LVP products plus floor-rated tiles."},
}

// LookupEndpoint finds an endpoint by name
func LookupEndpoint(name string) (Endpoint, error) {
	for _, e := range Endpoints {
		if e.Name == name {
			return e, nil
		}
	}
	return Endpoint{}, fmt.Errorf("%w: %s", types.ErrUnknownEndpoint, name)
}
