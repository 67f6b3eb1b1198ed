package graph

import (
	"fmt"
	"math"
)

// validateGeometry runs the dimension and wrinkle checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(g *DesignGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateDimensions(g)...)

	wErrs, wWarnings := validateWrinkles(g)
	errs = append(errs, wErrs...)
	warnings = append(warnings, wWarnings...)

	return errs, warnings
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func dimensionError(id NodeID, what string, v float64) ValidationError {
	return ValidationError{
		NodeID:   id,
		Message:  fmt.Sprintf("%s is %.4f, must be positive", what, v),
		Severity: SeverityError,
	}
}

// validateDimensions checks that every primitive has positive, finite
// dimensions.
func validateDimensions(g *DesignGraph) []ValidationError {
	var errs []ValidationError

	for _, node := range g.Nodes {
		switch d := node.Data.(type) {
		case BoxData:
			if !positive(d.Size.X) {
				errs = append(errs, dimensionError(node.ID, "box size X", d.Size.X))
			}
			if !positive(d.Size.Y) {
				errs = append(errs, dimensionError(node.ID, "box size Y", d.Size.Y))
			}
			if !positive(d.Size.Z) {
				errs = append(errs, dimensionError(node.ID, "box size Z", d.Size.Z))
			}
		case SphereData:
			if !positive(d.Radius) {
				errs = append(errs, dimensionError(node.ID, "sphere radius", d.Radius))
			}
		case CylinderData:
			if !positive(d.Height) {
				errs = append(errs, dimensionError(node.ID, "cylinder height", d.Height))
			}
			if !positive(d.Radius) {
				errs = append(errs, dimensionError(node.ID, "cylinder radius", d.Radius))
			}
		}
	}

	return errs
}

// minExtent returns the smallest full extent of a primitive, or 0 if d
// is not a primitive.
func minExtent(d NodeData) float64 {
	switch p := d.(type) {
	case BoxData:
		return math.Min(p.Size.X, math.Min(p.Size.Y, p.Size.Z))
	case SphereData:
		return 2 * p.Radius
	case CylinderData:
		return math.Min(p.Height, 2*p.Radius)
	}
	return 0
}

// validateWrinkles checks wrinkle parameters and that each wrinkle wraps
// exactly one primitive. It warns about wrinkles that cut nothing and
// kerfs wide enough to swallow the part.
func validateWrinkles(g *DesignGraph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	for _, node := range g.Nodes {
		wd, ok := node.Data.(WrinkleData)
		if !ok {
			continue
		}

		if wd.Iterations < 0 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("wrinkle iterations is %d, must not be negative", wd.Iterations),
				Severity: SeverityError,
			})
		} else if wd.Iterations == 0 {
			warnings = append(warnings, ValidationWarning{
				NodeID:  node.ID,
				Message: "wrinkle has 0 iterations and leaves its part uncut",
			})
		}

		if wd.Kerf < 0 || math.IsNaN(wd.Kerf) || math.IsInf(wd.Kerf, 0) {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("wrinkle kerf is %.4f, must be a non-negative number", wd.Kerf),
				Severity: SeverityError,
			})
		}

		if len(node.Children) != 1 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("wrinkle needs exactly one child, has %d", len(node.Children)),
				Severity: SeverityError,
			})
			continue
		}

		child := g.Nodes[node.Children[0]]
		if child == nil {
			continue // dangling references handled by validateReferences
		}
		if child.Kind != NodePrimitive {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("wrinkle child %s is %s, not primitive", child.ID.Short(), child.Kind),
				Severity: SeverityError,
			})
			continue
		}

		if m := minExtent(child.Data); wd.Kerf > 0 && m > 0 && wd.Kerf >= m {
			warnings = append(warnings, ValidationWarning{
				NodeID: node.ID,
				Message: fmt.Sprintf(
					"wrinkle kerf %.4f is at least the smallest extent %.4f of %q",
					wd.Kerf, m, child.Name,
				),
			})
		}
	}

	return errs, warnings
}
