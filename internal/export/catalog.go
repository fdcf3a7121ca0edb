package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/planbridge/internal/models"
)

// exportLocations writes one planning location per warehouse. The
// warehouse id travels in the subcategory attribute so planning
// results can be routed straight back to the right warehouse.
func (r *run) exportLocations(ctx context.Context, x *xmlWriter) error {
	whs, err := r.st.Warehouses(ctx)
	if err != nil {
		return err
	}
	first := true
	for _, wh := range whs {
		if first {
			x.write("<!-- warehouses -->\n")
			x.write("<locations>\n")
			first = false
		}
		available := ""
		if r.calendarName != "" {
			available = fmt.Sprintf("<available name=%s/>", quoteattr(r.calendarName))
		}
		x.printf("<location name=%s description=%s subcategory=\"%d\">%s</location>\n",
			quoteattr(wh.Code), quoteattr(wh.Name), wh.ID, available)
		name := wh.Code
		if name == "" {
			name = wh.Name
		}
		r.warehouses[wh.ID] = name
	}
	if !first {
		x.write("</locations>\n")
	}

	// The manufacturing location defaults to the company name until the
	// company's manufacturing warehouse resolves to a real location.
	if r.company != nil && r.company.ManufacturingWarehouseID != nil {
		if name, ok := r.warehouses[*r.company.ManufacturingWarehouseID]; ok {
			r.mfgLocation = name
		}
	}

	// Map each internal stock location to its warehouse's name for all
	// later lookups.
	locs, err := r.st.InternalLocations(ctx)
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if loc.WarehouseID == nil {
			continue
		}
		if name, ok := r.warehouses[*loc.WarehouseID]; ok {
			r.mapLocations[loc.ID] = name
		}
	}
	return nil
}

// exportCustomers writes the customer list. Company partners export
// under "<name> <id>", contacts roll up to their parent company and
// stand-alone individuals share a single "Individuals" customer.
func (r *run) exportCustomers(ctx context.Context, x *xmlWriter) error {
	partners, err := r.st.Partners(ctx)
	if err != nil {
		return err
	}
	// Parents before children so contacts can resolve their company.
	sort.SliceStable(partners, func(i, j int) bool {
		pi, pj := partners[i].ParentID, partners[j].ParentID
		if (pi == nil) != (pj == nil) {
			return pi == nil
		}
		return false
	})

	first := true
	individualInserted := false
	for _, p := range partners {
		if first {
			x.write("<!-- customers -->\n")
			x.write("<customers>\n")
			first = false
		}
		var name string
		switch {
		case p.IsCompany:
			name = fmt.Sprintf("%s %d", p.Name, p.ID)
			x.printf("<customer name=%s/>\n", quoteattr(name))
		case p.ParentID == nil || *p.ParentID == p.ID:
			name = "Individuals"
			if !individualInserted {
				x.printf("<customer name=%s/>\n", quoteattr(name))
				individualInserted = true
			}
		default:
			parent, ok := r.mapPartners[*p.ParentID]
			if !ok {
				continue
			}
			name = parent
		}
		r.mapPartners[p.ID] = name
	}
	if !first {
		x.write("</customers>\n")
	}
	return nil
}

// exportSuppliers re-declares the partner names as suppliers. The same
// partner can act as customer and supplier.
func (r *run) exportSuppliers(ctx context.Context, x *xmlWriter) error {
	names := make([]string, 0, len(r.mapPartners))
	seen := map[string]bool{}
	for _, name := range r.mapPartners {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	first := true
	for _, name := range names {
		if first {
			x.write("<!-- suppliers -->\n")
			x.write("<suppliers>\n")
			first = false
		}
		x.printf("<supplier name=%s/>\n", quoteattr(name))
	}
	if !first {
		x.write("</suppliers>\n")
	}
	return nil
}

func (r *run) exportSkills(ctx context.Context, x *xmlWriter) error {
	skills, err := r.st.Skills(ctx)
	if err != nil {
		return err
	}
	first := true
	for _, s := range skills {
		if first {
			x.write("<!-- skills -->\n")
			x.write("<skills>\n")
			first = false
		}
		x.printf("<skill name=%s/>\n", quoteattr(s.Name))
	}
	if !first {
		x.write("</skills>\n")
	}
	return nil
}

// exportWorkcenters writes the capacity resources. A workcenter with
// specific calendar entries references its synthesized calendar,
// everyone else shares the calendar it is linked to. Pool membership
// is expressed through the owner element.
func (r *run) exportWorkcenters(ctx context.Context, x *xmlWriter) error {
	cals, err := r.st.Calendars(ctx)
	if err != nil {
		return err
	}
	calByID := map[uint]string{}
	for _, c := range cals {
		calByID[c.ID] = calendarName(c)
	}

	ids := make([]uint, 0, len(r.workcenterByID))
	for id := range r.workcenterByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	first := true
	for _, id := range ids {
		wc := r.workcenterByID[id]
		if first {
			x.write("<!-- workcenters -->\n")
			x.write("<resources>\n")
			first = false
		}
		available := ""
		if name, ok := r.resourcesWithSpecific[wc.ID]; ok {
			available = fmt.Sprintf("<available name=%s/>", quoteattr("calendar for "+name))
		} else if wc.CalendarID != nil {
			if name, ok := calByID[*wc.CalendarID]; ok {
				available = fmt.Sprintf("<available name=%s/>", quoteattr(name))
			}
		}
		owner := ""
		if wc.OwnerID != nil {
			if parent, ok := r.workcenterByID[*wc.OwnerID]; ok {
				owner = fmt.Sprintf("<owner name=%s/>", quoteattr(parent.Name))
			}
		}
		subcategory := ""
		if wc.Tool {
			subcategory = "tool per piece"
		}
		r.mapWorkcenters[wc.ID] = wc.Name
		x.printf("<resource name=%s maximum=\"%g\" category=\"%d\" subcategory=\"%s\" efficiency=\"%g\"><location name=%s/>%s%s</resource>\n",
			quoteattr(wc.Name), wc.Capacity, wc.ID, subcategory, wc.Efficiency,
			quoteattr(r.mfgLocation), owner, available)
	}
	if !first {
		x.write("</resources>\n")
	}
	return nil
}

func (r *run) exportWorkcenterSkills(ctx context.Context, x *xmlWriter) error {
	wskills, err := r.st.WorkcenterSkills(ctx)
	if err != nil {
		return err
	}
	first := true
	for _, ws := range wskills {
		resource, ok := r.mapWorkcenters[ws.WorkcenterID]
		if !ok {
			continue
		}
		if first {
			x.write("<!-- resourceskills -->\n")
			x.write("<skills>\n")
			first = false
		}
		x.printf("<skill name=%s>\n", quoteattr(ws.Skill.Name))
		x.write("<resourceskills>")
		x.printf("<resourceskill priority=\"%d\"><resource name=%s/></resourceskill>",
			ws.Priority, quoteattr(resource))
		x.write("</resourceskills>")
		x.write("</skill>")
	}
	if !first {
		x.write("</skills>")
	}
	return nil
}

// exportItemHierarchy writes the product categories as owner items
// forming the item tree.
func (r *run) exportItemHierarchy(ctx context.Context, x *xmlWriter) error {
	cats, err := r.st.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		r.categories[c.ID] = c
	}
	first := true
	for _, c := range cats {
		if first {
			x.write("<!-- categories -->\n")
			x.write("<items>\n")
			first = false
		}
		owner := ""
		if c.ParentID != nil {
			if parent, ok := r.categories[*c.ParentID]; ok {
				owner = fmt.Sprintf("<owner name=%s/>", quoteattr(parent.CompleteName))
			}
		}
		x.printf("<item name=%s>%s</item>\n", quoteattr(c.CompleteName), owner)
	}
	if !first {
		x.write("</items>\n")
	}
	return nil
}

// supplierOffer is the merged price-book entry for one (supplier,
// start date) pair.
type supplierOffer struct {
	supplier  string
	dateStart *time.Time
	delay     float64
	sequence  int
	batching  float64
	minQty    float64
	price     float64
	dateEnd   *time.Time
}

func offerKey(name string, start *time.Time) string {
	if start == nil {
		return name
	}
	return name + "|" + start.Format("2006-01-02")
}

// mergeOffer folds a price-book line into an existing offer with the
// most permissive terms winning: lowest lead time, priority, minimum
// quantity and price, largest batching window and latest end date.
func mergeOffer(o *supplierOffer, p models.SupplierPrice) {
	if p.Delay != 0 && (o.delay == 0 || p.Delay < o.delay) {
		o.delay = p.Delay
	}
	if p.Sequence != 0 && (o.sequence == 0 || p.Sequence < o.sequence) {
		o.sequence = p.Sequence
	}
	if p.BatchingWindow != 0 && p.BatchingWindow > o.batching {
		o.batching = p.BatchingWindow
	}
	if p.MinQty != 0 && (o.minQty == 0 || p.MinQty < o.minQty) {
		o.minQty = p.MinQty
	}
	if p.Price != 0 && (o.price == 0 || p.Price < o.price) {
		o.price = p.Price
	}
	if p.DateEnd != nil && (o.dateEnd == nil || p.DateEnd.After(*o.dateEnd)) {
		o.dateEnd = p.DateEnd
	}
}

// exportItems writes every product variant and, for purchasable items,
// the merged supplier price book. Subcontracting price-book lines are
// collected per template instead: they become subcontract operations
// in the routing section.
func (r *run) exportItems(ctx context.Context, x *xmlWriter) error {
	templates, err := r.st.Templates(ctx)
	if err != nil {
		return err
	}
	for i := range templates {
		r.templates[templates[i].ID] = &templates[i]
	}

	products, err := r.st.Products(ctx)
	if err != nil {
		return err
	}

	// Short names need the internal reference (or name) to be unique.
	useShortNames := true
	nameCount := map[string]int{}
	for _, p := range products {
		if _, ok := r.templates[p.TemplateID]; !ok {
			continue
		}
		key := p.Code
		if key == "" {
			key = p.Name
		}
		nameCount[key]++
		if nameCount[key] > 1 {
			useShortNames = false
		}
	}

	prices, err := r.st.SupplierPrices(ctx)
	if err != nil {
		return err
	}
	pricesByTemplate := map[uint][]models.SupplierPrice{}
	for _, p := range prices {
		pricesByTemplate[p.TemplateID] = append(pricesByTemplate[p.TemplateID], p)
	}

	first := true
	for _, p := range products {
		tmpl, ok := r.templates[p.TemplateID]
		if !ok {
			continue
		}
		if first {
			x.write("<!-- products -->\n")
			x.write("<items>\n")
			first = false
		}

		var name, description string
		switch {
		case p.Code != "":
			if useShortNames {
				name = clip(p.Code, maxNameLength)
				description = clip(p.Name, 500)
			} else {
				name = clip(fmt.Sprintf("[%s] %s", p.Code, p.Name), maxNameLength)
			}
		case len(p.AttributeValueIDs) > 0:
			// Variant without internal reference: the id keeps the
			// name unique.
			name = clip(fmt.Sprintf("[%d] %s", p.ID, p.Name), maxNameLength)
			if useShortNames {
				description = clip(p.Name, 500)
			}
		default:
			name = clip(p.Name, maxNameLength)
			if useShortNames {
				description = clip(p.Name, 500)
			}
		}

		ref := &productRef{
			Name:       name,
			TemplateID: p.TemplateID,
			AttrValues: p.AttributeValueIDs,
			Code:       p.Code,
		}
		r.products[p.ID] = ref
		r.templateProduct[p.TemplateID] = ref
		r.productsByTmpl[p.TemplateID] = append(r.productsByTmpl[p.TemplateID], p.ID)

		costFactor := r.convertQty(1.0, tmpl.UomID, tmpl.ID)
		if costFactor == 0 {
			costFactor = 1
		}
		cost := tmpl.ListPrice + p.PriceExtra
		if cost < 0 {
			cost = 0
		}
		uomName := ""
		uomID := uint(0)
		if tmpl.UomID != nil {
			uomID = *tmpl.UomID
			uomName = r.uom[*tmpl.UomID].Name
		}
		descAttr := ""
		if description != "" {
			descAttr = fmt.Sprintf("description=%s", quoteattr(description))
		}
		mto := ""
		if tmpl.MakeToOrder {
			mto = ` type="item_mto"`
		}
		shelflife := ""
		if r.trackExpiry && tmpl.ExpirationDays > 0 {
			shelflife = fmt.Sprintf(" shelflife=%q", durationDays(tmpl.ExpirationDays))
		}
		owner := ""
		if tmpl.CategoryID != nil {
			if cat, ok := r.categories[*tmpl.CategoryID]; ok {
				owner = fmt.Sprintf("<owner name=%s/>", quoteattr(cat.CompleteName))
			}
		}
		x.printf("<item name=%s %s uom=%s volume=\"%f\" weight=\"%f\" cost=\"%f\" subcategory=\"%d,%d\"%s%s>%s\n",
			quoteattr(name), descAttr, quoteattr(uomName), p.Volume, p.Weight,
			cost/costFactor, uomID, p.ID, mto, shelflife, owner)

		if tmpl.PurchaseOK {
			r.writeItemSuppliers(x, tmpl, pricesByTemplate[tmpl.ID])
		}
		x.write("</item>\n")
	}
	if !first {
		x.write("</items>\n")
	}
	return nil
}

func (r *run) writeItemSuppliers(x *xmlWriter, tmpl *models.ProductTemplate, prices []models.SupplierPrice) {
	var order []string
	offers := map[string]*supplierOffer{}
	for _, sup := range prices {
		name, ok := r.mapPartners[sup.PartnerID]
		if !ok {
			// Archived suppliers are of no interest here.
			continue
		}
		if sup.Subcontractor {
			priority := sup.Sequence
			if priority == 0 {
				priority = 1
			}
			r.subcontractors[tmpl.ID] = append(r.subcontractors[tmpl.ID], subcontractor{
				Name:        name,
				Delay:       sup.Delay,
				Priority:    priority,
				SizeMinimum: sup.MinQty,
			})
			continue
		}
		key := offerKey(name, sup.DateStart)
		if o, ok := offers[key]; ok {
			mergeOffer(o, sup)
			continue
		}
		seq := sup.Sequence
		if seq == 0 {
			seq = 1
		}
		price := sup.Price
		if price < 0 {
			price = 0
		}
		offers[key] = &supplierOffer{
			supplier:  name,
			dateStart: sup.DateStart,
			delay:     sup.Delay,
			sequence:  seq,
			batching:  sup.BatchingWindow,
			minQty:    sup.MinQty,
			price:     price,
			dateEnd:   sup.DateEnd,
		}
		order = append(order, key)
	}
	if len(order) == 0 {
		return
	}
	x.write("<itemsuppliers>\n")
	for _, key := range order {
		o := offers[key]
		seq := o.sequence
		if seq == 0 {
			seq = 1
		}
		price := o.price
		if price < 0 {
			price = 0
		}
		end := ""
		if o.dateEnd != nil {
			end = fmt.Sprintf(" effective_end=\"%sT00:00:00\"", o.dateEnd.Format("2006-01-02"))
		}
		start := ""
		if o.dateStart != nil {
			start = fmt.Sprintf(" effective_start=\"%sT00:00:00\"", o.dateStart.Format("2006-01-02"))
		}
		x.printf("<itemsupplier leadtime=\"P%dD\" priority=\"%d\" batchwindow=\"P%dD\" size_minimum=\"%f\" cost=\"%f\"%s%s><supplier name=%s/></itemsupplier>\n",
			int(o.delay), seq, int(o.batching), o.minQty, price, end, start, quoteattr(o.supplier))
	}
	x.write("</itemsuppliers>\n")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
