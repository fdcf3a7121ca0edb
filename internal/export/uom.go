package export

import "context"

// uomEntry caches one unit of measure for quantity conversions.
type uomEntry struct {
	Factor   float64
	Category uint
	Name     string
}

// loadUOM caches every unit of measure, archived ones included.
// Historical order lines may still reference an archived unit.
func (r *run) loadUOM(ctx context.Context) error {
	uoms, err := r.st.UnitsOfMeasure(ctx)
	if err != nil {
		return err
	}
	for _, u := range uoms {
		r.uom[u.ID] = uomEntry{Factor: u.Factor, Category: u.Category, Name: u.Name}
	}
	return nil
}

// convertQty converts a quantity to the reference unit of the given
// product template. Without a template it converts to the unit
// category's reference. A category mismatch cannot be converted: it is
// logged and the quantity is scaled by the source factor alone, so the
// export keeps running with a best-effort value.
func (r *run) convertQty(qty float64, uomID *uint, templateID uint) float64 {
	if uomID == nil || *uomID == 0 {
		return qty
	}
	src, ok := r.uom[*uomID]
	if !ok {
		return qty
	}
	if templateID == 0 {
		return qty * src.Factor
	}
	tmpl, ok := r.templates[templateID]
	if !ok || tmpl.UomID == nil {
		return qty * src.Factor
	}
	if *tmpl.UomID == *uomID {
		return qty
	}
	ref, ok := r.uom[*tmpl.UomID]
	if !ok {
		return qty * src.Factor
	}
	if ref.Category == src.Category {
		return qty / src.Factor * ref.Factor
	}
	r.log.Warn().
		Str("uom", src.Name).
		Uint("template", templateID).
		Msg("cannot convert between unit categories")
	return qty * src.Factor
}
