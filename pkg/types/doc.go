// Package types provides shared type definitions for the catalog search service.
//
// FilterSet is the attribute filter accepted by every search endpoint. Each
// endpoint only allows a subset of its fields:
//
//	filters := &types.FilterSet{
//	    HoleSpacing: types.HoleSpacingSingleHole,
//	}
//	if err := filters.Allows([]string{types.FieldHoleSpacing}); err != nil {
//	    // errors.Is(err, types.ErrFilterNotAllowed)
//	}
//
// Pointer fields distinguish "not requested" (nil) from a requested false or
// zero value; use Bool and Float to build them inline.
package types
