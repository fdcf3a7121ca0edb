package export

import (
	"context"
	"fmt"

	"example.com/planbridge/internal/models"
)

// flowKey groups consumed components per routing step. A nil step
// means the BOM line is not tied to any specific step.
type flowKey struct {
	productID uint
	stepID    uint // 0 when unattributed
}

// exportBOMs flattens the bill-of-material and routing structures into
// operations. Two shapes exist:
//
// Case 1, a single operation: used without work-order tracking, for
// subcontracted BOMs and for BOMs without routing steps. All capacity
// consumption collapses into one load list.
//
// Case 2, a routing operation with one suboperation per step: used when
// work orders are tracked individually. Each step carries its own
// duration, loads and flows.
func (r *run) exportBOMs(ctx context.Context, x *xmlWriter) error {
	x.write("<!-- bills of material -->\n")
	x.write("<operations>\n")

	steps, err := r.st.RoutingSteps(ctx)
	if err != nil {
		return err
	}
	// Group the steps per BOM. Without work-order tracking, repeated
	// use of the same workcenter within one routing folds into a
	// single step with the cycle times added up.
	routingSteps := map[uint][]models.RoutingStep{}
	for _, s := range steps {
		if s.BOMID == nil {
			continue
		}
		bomID := *s.BOMID
		if !r.trackWorkOrders {
			merged := false
			for k := range routingSteps[bomID] {
				existing := &routingSteps[bomID][k]
				if sameWorkcenter(existing.WorkcenterID, s.WorkcenterID) {
					existing.TimeCycle += s.TimeCycle
					merged = true
					break
				}
			}
			if merged {
				continue
			}
		}
		routingSteps[bomID] = append(routingSteps[bomID], s)
	}

	boms, err := r.st.BOMs(ctx)
	if err != nil {
		return err
	}
	for _, bom := range boms {
		tmpl, ok := r.templates[bom.TemplateID]
		if !ok {
			continue
		}
		location := r.mfgLocation
		uomFactor := r.convertQty(1.0, bom.UomID, bom.TemplateID)

		var subs []*subcontractor
		if bom.Type == "subcontract" {
			list := r.subcontractors[bom.TemplateID]
			if len(list) == 0 {
				continue
			}
			for k := range list {
				subs = append(subs, &list[k])
			}
		} else {
			subs = []*subcontractor{nil}
		}

		for _, productID := range r.productsByTmpl[bom.TemplateID] {
			if bom.ProductID != nil && *bom.ProductID != productID {
				continue
			}
			product, ok := r.products[productID]
			if !ok {
				r.log.Warn().Uint("template", bom.TemplateID).Msg("skipping product without item")
				continue
			}

			for _, sub := range subs {
				base := product.Code
				if base == "" {
					base = product.Name
				}
				at := location
				if sub != nil {
					at = sub.Name
				}
				suffix := fmt.Sprintf(" @ %s %d", at, bom.ID)
				operation := truncateName(base, suffix)

				stepList := routingSteps[bom.ID]
				if !r.trackWorkOrders || sub != nil || len(stepList) == 0 {
					r.writeSingleOperation(x, &bom, tmpl, product, sub, operation, location, stepList)
				} else {
					r.writeRoutingOperation(x, &bom, tmpl, product, operation, location, stepList, uomFactor)
				}
			}
		}
	}
	x.write("</operations>\n")
	return nil
}

func sameWorkcenter(a, b *uint) bool {
	return a != nil && b != nil && *a == *b
}

func bomPriority(bom *models.BOM) int {
	seq := bom.Sequence
	if seq == 0 {
		seq = 1
	}
	return 100 + seq
}

func descAttr(bom *models.BOM) string {
	if bom.Code == "" {
		return ""
	}
	return fmt.Sprintf("description=%s ", quoteattr(bom.Code))
}

// lineApplies checks whether a BOM line restricted to attribute values
// covers the given variant.
func lineApplies(line models.BOMLine, product *productRef) bool {
	if len(line.AttributeValueIDs) == 0 {
		return true
	}
	set := map[int64]bool{}
	for _, v := range line.AttributeValueIDs {
		set[v] = true
	}
	for _, v := range product.AttrValues {
		if !set[v] {
			return false
		}
	}
	return true
}

func (r *run) writeSingleOperation(x *xmlWriter, bom *models.BOM, tmpl *models.ProductTemplate,
	product *productRef, sub *subcontractor, operation, location string, stepList []models.RoutingStep) {

	if sub != nil {
		x.printf("<operation name=%s %ssize_multiple=\"1\" category=\"subcontractor\" subcategory=%s duration=\"P%dD\" posttime=\"P%dD\" xsi:type=\"operation_fixed_time\" priority=\"%d\" size_minimum=\"%g\">\n<item name=%s/><location name=%s/>\n",
			quoteattr(operation), descAttr(bom), quoteattr(sub.Name), int(sub.Delay),
			int(r.poLead), sub.Priority+50, sub.SizeMinimum,
			quoteattr(product.Name), quoteattr(location))
	} else {
		durationPer := "P0D"
		if d := bom.ProduceDelay + bom.DaysToPrepare; d > 0 {
			durationPer = durationDays(d)
		}
		x.printf("<operation name=%s %ssize_multiple=\"1\" duration_per=\"%s\" posttime=\"P%dD\" priority=\"%d\" xsi:type=\"operation_time_per\">\n<item name=%s/><location name=%s/>\n",
			quoteattr(operation), descAttr(bom), durationPer, int(r.mfgLead),
			bomPriority(bom), quoteattr(product.Name), quoteattr(location))
	}

	producedQty := r.convertQty(bom.Quantity, bom.UomID, bom.TemplateID)
	if producedQty == 0 {
		producedQty = 1
	}
	if producedQty != 1 && sub == nil {
		x.printf("<size_minimum>%g</size_minimum>\n", producedQty)
	}
	x.write("<flows>\n")

	// Consuming flows. The same component on multiple lines is summed
	// into a single flow, assuming identical effectivity.
	var order []uint
	sums := map[uint]float64{}
	for _, line := range bom.Lines {
		if !lineApplies(line, product) {
			continue
		}
		component, ok := r.products[line.ProductID]
		if !ok {
			continue
		}
		qty := r.convertQty(line.Quantity, line.UomID, component.TemplateID)
		if _, seen := sums[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		sums[line.ProductID] += qty
	}
	for _, pid := range order {
		if sums[pid] > 0 {
			x.printf("<flow xsi:type=\"flow_start\" quantity=\"-%f\"><item name=%s/></flow>\n",
				sums[pid]/producedQty, quoteattr(r.products[pid].Name))
		}
	}

	// Byproduct flows. Fixed byproducts produce a constant quantity.
	for _, bp := range bom.Byproducts {
		component, ok := r.products[bp.ProductID]
		if !ok {
			continue
		}
		flowType := "flow_end"
		if bp.Type == "fixed" {
			flowType = "flow_fixed_end"
		}
		x.printf("<flow xsi:type=\"%s\" quantity=\"%f\"><item name=%s/></flow>\n",
			flowType, r.convertQty(bp.Quantity, bp.UomID, component.TemplateID)/producedQty,
			quoteattr(component.Name))
	}
	x.write("</flows>\n")

	// All capacity consumption of the routing collapses into one load
	// list. Loads carry the cycle time as quantity; secondary
	// workcenters contribute a ratio against the step duration.
	if sub == nil {
		wroteLoads := false
		for _, step := range stepList {
			if step.WorkcenterID == nil {
				continue
			}
			resource, ok := r.mapWorkcenters[*step.WorkcenterID]
			if !ok {
				continue
			}
			if !wroteLoads {
				wroteLoads = true
				x.write("<loads>\n")
			}
			x.printf("<load quantity=\"%f\" search=%s><resource name=%s/>%s</load>\n",
				step.TimeCycle, quoteattr(step.SearchMode), quoteattr(resource), skillRef(step.Skill))
			for _, sec := range step.Secondaries {
				secResource, ok := r.mapWorkcenters[sec.WorkcenterID]
				if !ok {
					continue
				}
				x.printf("<load quantity=\"%f\" search=%s><resource name=%s/>%s</load>",
					secondaryRatio(sec.Duration, step.TimeCycle),
					quoteattr(sec.SearchMode), quoteattr(secResource), skillRef(sec.Skill))
			}
		}
		if wroteLoads {
			x.write("</loads>\n")
		}
	}
	x.write("</operation>\n")
}

// secondaryRatio scales a secondary workcenter's duration against the
// primary step duration. The planning engine multiplies load quantity
// by the operation's own duration, so this must be a ratio.
func secondaryRatio(duration, timeCycle float64) float64 {
	if duration == 0 || timeCycle == 0 {
		return 1
	}
	return duration / timeCycle
}

func skillRef(skill *models.Skill) string {
	if skill == nil {
		return ""
	}
	return fmt.Sprintf("<skill name=%s/>", quoteattr(skill.Name))
}

func (r *run) writeRoutingOperation(x *xmlWriter, bom *models.BOM, tmpl *models.ProductTemplate,
	product *productRef, operation, location string, stepList []models.RoutingStep, uomFactor float64) {

	x.printf("<operation name=%s %ssize_multiple=\"1\" posttime=\"P%dD\" priority=\"%d\" xsi:type=\"operation_routing\"><item name=%s/><location name=%s/>\n",
		quoteattr(operation), descAttr(bom), int(r.mfgLead), bomPriority(bom),
		quoteattr(product.Name), quoteattr(location))

	producedQty := bom.Quantity * uomFactor
	if producedQty == 0 {
		producedQty = 1
	}
	if producedQty != 1 {
		x.printf("<size_minimum>%g</size_minimum>\n", producedQty)
	}
	x.write("<suboperations>")

	// Components grouped by (product, step). Unattributed lines land
	// on the first routing step: planning-wise the material must be
	// there before work starts, even though execution would hand it to
	// the final step by default.
	var order []flowKey
	sums := map[flowKey]float64{}
	for _, line := range bom.Lines {
		if !lineApplies(line, product) {
			continue
		}
		component, ok := r.products[line.ProductID]
		if !ok {
			continue
		}
		qty := r.convertQty(line.Quantity, line.UomID, component.TemplateID)
		key := flowKey{productID: line.ProductID}
		if line.RoutingStepID != nil {
			key.stepID = *line.RoutingStepID
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += qty
	}

	for idx, step := range stepList {
		suffix := fmt.Sprintf(" - %s - %d", step.Name, step.ID)
		name := truncateName(operation, suffix)
		if step.WorkcenterID == nil {
			continue
		}
		resource, ok := r.mapWorkcenters[*step.WorkcenterID]
		if !ok {
			continue
		}

		durationPer := "P0D"
		if step.TimeCycle > 0 {
			durationPer = durationMinutes(step.TimeCycle)
		}
		x.printf("<suboperation><operation name=%s %spriority=\"%d\" duration_per=\"%s\" xsi:type=\"operation_time_per\">\n<location name=%s/>\n",
			quoteattr(name), descAttr(bom), (idx+1)*10, durationPer, quoteattr(location))
		x.printf("<loads><load quantity=\"%d\" search=%s><resource name=%s/>%s</load>",
			1, quoteattr(step.SearchMode), quoteattr(resource), skillRef(step.Skill))
		for _, sec := range step.Secondaries {
			secResource, ok := r.mapWorkcenters[sec.WorkcenterID]
			if !ok {
				continue
			}
			x.printf("<load quantity=\"%f\" search=%s><resource name=%s/>%s</load>",
				secondaryRatio(sec.Duration, step.TimeCycle),
				quoteattr(sec.SearchMode), quoteattr(secResource), skillRef(sec.Skill))
		}
		x.write("</loads>\n")

		firstFlow := true
		for _, key := range order {
			qty := sums[key]
			if qty <= 0 {
				continue
			}
			if key.stepID != step.ID && !(key.stepID == 0 && idx == 0) {
				continue
			}
			if firstFlow {
				firstFlow = false
				x.write("<flows>\n")
			}
			x.printf("<flow xsi:type=\"flow_start\" quantity=\"-%f\"><item name=%s/></flow>\n",
				qty/producedQty, quoteattr(r.products[key.productID].Name))
		}
		if !firstFlow {
			x.write("</flows>\n")
		}
		x.write("</operation></suboperation>\n")
	}
	x.write("</suboperations>\n")
	x.write("</operation>\n")
}
