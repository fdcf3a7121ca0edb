package export

import (
	"context"
	"fmt"
	"math"
	"time"

	"example.com/planbridge/internal/models"
)

// exportSalesOrders writes the demand records. Quotations export in
// full with status quote. For confirmed orders with open shipment
// moves, one demand per move is written so partial shipments stay
// individually schedulable, netting reserved stock when the company
// respects reservations. Without open moves the demand nets ordered
// minus delivered, exporting the original quantity as closed when
// nothing remains.
func (r *run) exportSalesOrders(ctx context.Context, x *xmlWriter) error {
	since := time.Time{}
	if r.delta < 999 {
		since = r.now.AddDate(0, 0, -int(r.delta))
	}
	lines, err := r.st.SalesOrderLines(ctx, since)
	if err != nil {
		return err
	}
	open, err := r.st.OpenStockMoves(ctx)
	if err != nil {
		return err
	}
	openMoves := map[uint]models.StockMove{}
	for _, m := range open {
		openMoves[m.ID] = m
	}

	// Reserved quantity of a shipment move plus everything reserved
	// along its predecessor chain.
	var reservedQty func(id uint, visited map[uint]bool) float64
	reservedQty = func(id uint, visited map[uint]bool) float64 {
		if visited[id] {
			return 0
		}
		visited[id] = true
		mv, ok := openMoves[id]
		if !ok {
			return 0
		}
		reserved := 0.0
		if mv.ProcureMethod != "make_to_stock" {
			reserved = mv.Quantity
		}
		for _, orig := range mv.OrigIDs {
			if uint(orig) != id {
				reserved += reservedQty(uint(orig), visited)
			}
		}
		return reserved
	}

	x.write("<!-- sales order lines -->\n")
	x.write("<demands>\n")
	for _, line := range lines {
		order := line.Order
		name := fmt.Sprintf("%s %d", order.Name, line.ID)
		batch := order.Name
		var product *productRef
		if line.ProductID != nil {
			product = r.products[*line.ProductID]
		}
		location := ""
		if order.WarehouseID != nil {
			location = r.warehouses[*order.WarehouseID]
		}
		customer := ""
		if order.PartnerID != nil {
			customer = r.mapPartners[*order.PartnerID]
		}
		if product == nil || location == "" || customer == "" {
			continue
		}

		due := order.OrderDate
		if order.CommitmentDate != nil {
			due = *order.CommitmentDate
		}
		const priority = 1
		policy := "independent"
		if order.PickingPolicy == "one" {
			policy = "alltogether"
		}

		state := order.State
		if state == "sale" {
			anyOpen := false
			for _, mv := range line.Moves {
				if _, ok := openMoves[mv.ID]; ok {
					anyOpen = true
					break
				}
			}
			if !anyOpen {
				state = "done"
			}
		}

		writeDemand := func(name string, qty float64, due time.Time, minShipment float64, status string) {
			x.printf("<demand name=%s batch=%s quantity=\"%g\" due=\"%s\" priority=\"%d\" minshipment=\"%g\" status=\"%s\"><item name=%s/><customer name=%s/><location name=%s/><owner name=%s policy=\"%s\" xsi:type=\"demand_group\"/></demand>\n",
				quoteattr(name), quoteattr(batch), qty, fmtTime(due, r.loc), priority,
				minShipment, status, quoteattr(product.Name), quoteattr(customer),
				quoteattr(location), quoteattr(order.Name), policy)
		}

		switch state {
		case "draft", "sent":
			qty := r.convertQty(line.Quantity, line.UomID, product.TemplateID)
			min := 0.0
			if order.PickingPolicy == "one" && qty > 0 {
				min = qty
			}
			writeDemand(name, qty, due, min, "quote")
		case "sale":
			if len(line.Moves) > 0 {
				anyOpen := false
				for _, mv := range line.Moves {
					if _, ok := openMoves[mv.ID]; ok {
						anyOpen = true
						break
					}
				}
				if anyOpen {
					// One demand per open shipment move.
					for _, lm := range line.Moves {
						sm, ok := openMoves[lm.ID]
						if !ok {
							continue
						}
						moveName := name
						if len(line.Moves) > 1 {
							moveName = fmt.Sprintf("%s %d", name, sm.ID)
						}
						qty := r.convertQty(sm.UomQty, sm.UomID, product.TemplateID)
						reserved := 0.0
						if r.respectReservations {
							reserved = reservedQty(sm.ID, map[uint]bool{})
						}
						moveDue := sm.Date
						if moveDue.IsZero() {
							moveDue = order.OrderDate
						}
						net := qty - reserved
						status := "open"
						outQty := net
						if net <= 0 {
							status = "closed"
							outQty = qty
						}
						min := 0.0
						if order.PickingPolicy == "one" && net > 0 {
							min = net
						}
						writeDemand(moveName, outQty, moveDue, min, status)
					}
					continue
				}
			}
			remaining := line.Quantity - line.QtyDelivered
			if remaining <= 0 {
				qty := r.convertQty(line.Quantity, line.UomID, product.TemplateID)
				min := 0.0
				if order.PickingPolicy == "one" && qty > 0 {
					min = qty
				}
				writeDemand(name, qty, due, min, "closed")
			} else {
				qty := r.convertQty(remaining, line.UomID, product.TemplateID)
				min := 0.0
				if order.PickingPolicy == "one" && qty > 0 {
					min = qty
				}
				writeDemand(name, qty, due, min, "open")
			}
		case "done":
			qty := r.convertQty(line.Quantity, line.UomID, product.TemplateID)
			min := 0.0
			if order.PickingPolicy == "one" && qty > 0 {
				min = qty
			}
			writeDemand(name, qty, due, min, "closed")
		case "cancel":
			qty := r.convertQty(line.Quantity, line.UomID, product.TemplateID)
			min := 0.0
			if order.PickingPolicy == "one" && qty > 0 {
				min = qty
			}
			writeDemand(name, qty, due, min, "canceled")
		default:
			r.log.Warn().Str("state", state).Msg("unknown sales order state")
		}
	}
	x.write("</demands>\n")
	return nil
}

// supplierName resolves a supplier that may have been archived since
// the order was placed, caching the recovered name for the rest of the
// run.
func (r *run) supplierName(ctx context.Context, partnerID uint) string {
	if name, ok := r.mapPartners[partnerID]; ok {
		return name
	}
	p, err := r.st.PartnerByID(ctx, partnerID)
	if err != nil {
		return ""
	}
	name := fmt.Sprintf("%s %d", p.Name, p.ID)
	if !p.Active {
		name = fmt.Sprintf("%s (archived) %d", p.Name, p.ID)
	}
	r.mapPartners[p.ID] = name
	return name
}

// exportPurchaseOrders writes the open supply as PO operationplans.
// When receipt moves exist they are the source of truth instead of the
// possibly stale order line. Subcontracted receipt lines are not
// exported: they map onto a manufacturing order instead, and the
// reference mapping is kept for the manufacturing section.
func (r *run) exportPurchaseOrders(ctx context.Context, x *xmlWriter) error {
	lines, err := r.st.OpenPurchaseLines(ctx)
	if err != nil {
		return err
	}
	x.write("<!-- open purchase orders -->\n")
	x.write("<operationplans>\n")
	for _, line := range lines {
		order := line.Order
		if len(line.Moves) > 0 {
			for _, mv := range line.Moves {
				if mv.LocationDestID == nil {
					continue
				}
				switch mv.State {
				case "draft", "cancel", "done":
					continue
				}
				reference := fmt.Sprintf("%s - %d - %d", order.Name, mv.ID, line.ID)
				if mv.Subcontract {
					if mv.ProductionID != nil {
						r.subcontractMOPO[*mv.ProductionID] = reference
					}
					continue
				}
				item, ok := r.products[mv.ProductID]
				if !ok {
					continue
				}
				location, ok := r.mapLocations[*mv.LocationDestID]
				if !ok {
					continue
				}
				supplier := r.supplierName(ctx, order.PartnerID)
				if supplier == "" {
					continue
				}
				batch := ""
				if r.templates[item.TemplateID] != nil && r.templates[item.TemplateID].MakeToOrder {
					batch = mv.Origin
				}
				start := order.OrderDate
				end := mv.Date
				if start.After(end) {
					start = end
				}
				if mv.UomQty >= 0 {
					r.writePO(x, reference, batch, start, end, mv.UomQty, item.Name, location, supplier)
				}
			}
			continue
		}

		if line.ProductID == nil || order.State == "cancel" {
			continue
		}
		item, ok := r.products[*line.ProductID]
		if !ok || r.mfgLocation == "" {
			continue
		}
		if line.Quantity <= line.QtyReceived {
			continue
		}
		supplier := r.supplierName(ctx, order.PartnerID)
		if supplier == "" {
			continue
		}
		qty := r.convertQty(line.Quantity-line.QtyReceived, line.UomID, item.TemplateID)
		batch := ""
		if r.templates[item.TemplateID] != nil && r.templates[item.TemplateID].MakeToOrder {
			batch = order.Origin
		}
		start := order.OrderDate
		end := line.DatePlanned
		if start.After(end) {
			start = end
		}
		reference := fmt.Sprintf("%s - %d", order.Name, line.ID)
		r.writePO(x, reference, batch, start, end, qty, item.Name, r.mfgLocation, supplier)
	}
	x.write("</operationplans>\n")
	return nil
}

func (r *run) writePO(x *xmlWriter, reference, batch string, start, end time.Time,
	qty float64, item, location, supplier string) {

	batchAttr := ""
	if batch != "" {
		batchAttr = fmt.Sprintf("batch=%s ", quoteattr(batch))
	}
	x.printf("<operationplan reference=%s %sordertype=\"PO\" start=\"%s\" end=\"%s\" quantity=\"%f\" status=\"confirmed\"><item name=%s/><location name=%s/><supplier name=%s/></operationplan>\n",
		quoteattr(reference), batchAttr, fmtTime(start, r.loc), fmtTime(end, r.loc),
		qty, quoteattr(item), quoteattr(location), quoteattr(supplier))
}

// exportManufacturingOrders writes the work in progress. Every order
// gets an order-specific operation: the order's material and capacity
// data can be edited by hand and may deviate from the BOM. With work
// orders tracked, the operation is a routing with one suboperation per
// work order plus one operationplan per work order, walked in reverse
// so the planner sees the later steps first.
func (r *run) exportManufacturingOrders(ctx context.Context, x *xmlWriter) error {
	mos, err := r.st.ActiveManufacturingOrders(ctx)
	if err != nil {
		return err
	}
	x.write("<!-- manufacturing orders in progress -->\n")
	x.write("<operationplans>\n")
	for i := range mos {
		mo := &mos[i]
		location := ""
		if mo.LocationDestID != nil {
			location = r.mapLocations[*mo.LocationDestID]
		}
		name := mo.Name
		if location == "" && mo.OperationTypeID != nil {
			// Subcontracting orders resolve their warehouse through the
			// operation type, and take over the purchase reference.
			if opType, ok := r.operationTypes[*mo.OperationTypeID]; ok && opType.WarehouseID != nil {
				location = r.warehouses[*opType.WarehouseID]
				if location != "" {
					if code, ok := r.subcontractMOPO[mo.ID]; ok {
						name = code
					}
				}
			}
		}
		item, ok := r.products[mo.ProductID]
		if !ok || location == "" {
			continue
		}
		start := mo.DateStart
		if start == nil {
			// Not yet started: use the scheduled start instead.
			start = mo.DatePlannedStart
		}
		if start == nil {
			continue
		}
		produceQty := mo.Quantity
		if mo.QtyProducing != 0 {
			produceQty = mo.QtyProducing
		}
		qty := r.convertQty(produceQty, mo.UomID, item.TemplateID)
		if qty == 0 {
			continue
		}
		batch := mo.Origin
		if batch == "" {
			batch = name
		}

		// The order itself stays approved: the planner may still move
		// it to match material and capacity.
		x.printf("<operationplan type=\"MO\" reference=%s batch=%s start=\"%s\" quantity=\"%g\" status=\"approved\">\n",
			quoteattr(name), quoteattr(batch), fmtTime(*start, r.loc), qty)

		var workOrders []models.WorkOrder
		if r.trackWorkOrders {
			workOrders = mo.WorkOrders
		}
		if len(workOrders) == 0 {
			r.writeFlatMO(x, mo, item, name, location, qty)
		} else {
			r.writeRoutedMO(x, mo, item, name, location, qty, workOrders)
		}
	}
	x.write("</operationplans>\n")
	return nil
}

// netMoveQty nets the reserved part of a raw-material move when
// reservations are respected.
func (r *run) netMoveQty(mv models.StockMove, templateID uint) float64 {
	reserved := 0.0
	if r.respectReservations {
		reserved = mv.Quantity
	}
	q := mv.UomQty - reserved
	if q < 0 {
		q = 0
	}
	return r.convertQty(q, mv.UomID, templateID)
}

func (r *run) writeFlatMO(x *xmlWriter, mo *models.ManufacturingOrder, item *productRef,
	operation, location string, qty float64) {

	x.printf("<operation name=%s xsi:type=\"operation_fixed_time\" priority=\"0\"><location name=%s/><item name=%s/><flows>",
		quoteattr(operation), quoteattr(location), quoteattr(item.Name))
	// The BOM may list the same product on several lines.
	var order []string
	materials := map[string]float64{}
	for _, mv := range mo.RawMoves {
		component, ok := r.products[mv.ProductID]
		if !ok {
			continue
		}
		flowQty := r.netMoveQty(mv, component.TemplateID)
		if flowQty <= 0 {
			continue
		}
		if _, seen := materials[component.Name]; !seen {
			order = append(order, component.Name)
		}
		materials[component.Name] += -flowQty / qty
	}
	for _, name := range order {
		x.printf("<flow xsi:type=\"flow_start\" quantity=\"%g\"><item name=%s/></flow>\n",
			materials[name], quoteattr(name))
	}
	x.printf("<flow xsi:type=\"flow_end\" quantity=\"1\"><item name=%s/></flow>\n", quoteattr(item.Name))
	x.write("</flows></operation></operationplan>")
}

func (r *run) writeRoutedMO(x *xmlWriter, mo *models.ManufacturingOrder, item *productRef,
	operation, location string, qty float64, workOrders []models.WorkOrder) {

	x.printf("<operation name=%s xsi:type=\"operation_routing\" priority=\"0\"><item name=%s/><location name=%s/><suboperations>",
		quoteattr(operation), quoteattr(item.Name), quoteattr(location))

	idx := 10
	firstWO := true
	for wi := range workOrders {
		wo := &workOrders[wi]
		subName := fmt.Sprintf("%s - %d", clip(wo.DisplayName, maxNameLength), wo.ID)

		// Remaining duration, minus the elapsed time of any session
		// currently running.
		timeLeft := wo.DurationExpected - wo.DurationDone
		if wo.UserWorking {
			for _, tl := range wo.TimeLogs {
				if tl.DateStart != nil && tl.DateEnd == nil {
					timeLeft -= math.Round(r.now.Sub(*tl.DateStart).Minutes())
				}
			}
		}
		x.printf("<suboperation><operation name=%s priority=\"%d\" type=\"operation_fixed_time\" duration=\"%s\"><location name=%s/><flows>",
			quoteattr(subName), idx, durationMinutes(math.Max(timeLeft, 1)), quoteattr(location))
		idx += 10

		for _, mv := range mo.RawMoves {
			component, ok := r.products[mv.ProductID]
			if !ok {
				continue
			}
			// A move without an explicit step attribution is consumed
			// at the first work order. Execution would hand it to the
			// last one, but planning-wise the material must be present
			// before the work starts.
			if mv.WorkOrderID != nil && mv.RoutingStepID != nil {
				if *mv.WorkOrderID != wo.ID {
					continue
				}
			} else if !firstWO {
				continue
			}
			flowQty := r.netMoveQty(mv, component.TemplateID)
			if flowQty > 0 {
				x.printf("<flow quantity=\"%g\"><item name=%s/></flow>\n",
					-flowQty/qty, quoteattr(component.Name))
			}
		}
		x.write("</flows>")

		r.writeWOLoads(x, wo)
		firstWO = false
		x.write("</operation></suboperation>")
	}
	x.write("</suboperations></operation></operationplan>")

	// One operationplan per work order, last step first.
	for wi := len(workOrders) - 1; wi >= 0; wi-- {
		wo := &workOrders[wi]
		subName := fmt.Sprintf("%s - %d", clip(wo.DisplayName, maxNameLength), wo.ID)

		var status string
		switch wo.State {
		case "progress":
			status = "confirmed"
		case "done", "to_close", "cancel":
			status = "completed"
		default:
			status = "approved"
		}

		dateAttr := ""
		if wo.DateFinished != nil {
			dateAttr = fmt.Sprintf(" end=%q", fmtTime(*wo.DateFinished, r.loc))
		} else {
			dt := r.now
			if !wo.UserWorking {
				if wo.DateStart != nil && wo.DateStart.After(r.now) {
					dt = *wo.DateStart
				} else if wo.DateStart == nil && mo.DateStart != nil && mo.DateStart.After(r.now) {
					dt = *mo.DateStart
				}
			}
			dateAttr = fmt.Sprintf(" start=%q", fmtTime(dt, r.loc))
		}
		x.printf("<operationplan type=\"MO\" reference=%s%s quantity=\"%g\" status=\"%s\"><operation name=%s/><owner reference=%s/>",
			quoteattr(wo.DisplayName), dateAttr, qty, status, quoteattr(subName), quoteattr(mo.Name))

		if wo.RoutingStepID != nil && wo.WorkcenterID != nil {
			if resource, ok := r.mapWorkcenters[*wo.WorkcenterID]; ok {
				x.printf("<loadplans><loadplan><resource name=%s/></loadplan></loadplans>", quoteattr(resource))
			}
		}
		if len(wo.Secondaries) > 0 {
			x.write("<loadplans>")
			for _, sec := range wo.Secondaries {
				if wo.WorkcenterID != nil && sec.WorkcenterID == *wo.WorkcenterID {
					continue
				}
				if resource, ok := r.mapWorkcenters[sec.WorkcenterID]; ok {
					x.printf("<loadplan><resource name=%s/></loadplan>", quoteattr(resource))
				}
			}
			x.write("</loadplans>")
		}
		x.write("</operationplan>\n")
	}
}

// writeWOLoads emits the capacity loads of one work order suboperation.
// When the routing step names a pool and the work order's own
// workcenter belongs to it, the load goes against the pool so the
// planner can re-pick a member.
func (r *run) writeWOLoads(x *xmlWriter, wo *models.WorkOrder) {
	step := wo.RoutingStep
	poolLoad := false
	if step != nil && wo.WorkcenterID != nil && step.WorkcenterID != nil {
		if resource, ok := r.mapWorkcenters[*step.WorkcenterID]; ok {
			own := r.workcenterByID[*wo.WorkcenterID]
			if own.OwnerID != nil && *own.OwnerID == *step.WorkcenterID {
				x.printf("<loads><load><resource name=%s/></load></loads>", quoteattr(resource))
				poolLoad = true
			}
		}
	}
	if !poolLoad && wo.WorkcenterID != nil {
		if resource, ok := r.mapWorkcenters[*wo.WorkcenterID]; ok {
			x.printf("<loads><load><resource name=%s/></load></loads>", quoteattr(resource))
		}
	}
	if step == nil {
		return
	}
	for _, woSec := range wo.Secondaries {
		if wo.WorkcenterID != nil && woSec.WorkcenterID == *wo.WorkcenterID {
			continue
		}
		assigned, ok := r.workcenterByID[woSec.WorkcenterID]
		if !ok {
			continue
		}
		for _, sec := range step.Secondaries {
			if assigned.OwnerID == nil || *assigned.OwnerID != sec.WorkcenterID {
				continue
			}
			resource, ok := r.mapWorkcenters[sec.WorkcenterID]
			if !ok {
				break
			}
			x.printf("<load quantity=\"%f\" search=%s><resource name=%s/>%s</load>",
				secondaryRatio(sec.Duration, step.TimeCycle),
				quoteattr(sec.SearchMode), quoteattr(resource), skillRef(sec.Skill))
			break
		}
	}
}

// exportOrderpoints publishes the reordering rules as safety-stock and
// reorder-quantity calendars keyed to the buffer name.
func (r *run) exportOrderpoints(ctx context.Context, x *xmlWriter) error {
	orderpoints, err := r.st.Orderpoints(ctx)
	if err != nil {
		return err
	}
	first := true
	for _, op := range orderpoints {
		item, ok := r.products[op.ProductID]
		if !ok {
			continue
		}
		warehouse, ok := r.warehouses[op.WarehouseID]
		if !ok {
			continue
		}
		if first {
			x.write("<!-- order points -->\n")
			x.write("<calendars>\n")
			first = false
		}
		uomFactor := r.convertQty(1.0, op.UomID, item.TemplateID)
		name := fmt.Sprintf("%s @ %s", item.Name, warehouse)
		start := r.now.Format(timeFormat)
		if op.MinQty > 0 {
			x.printf("<calendar name=%s default=\"0\"><buckets>\n<bucket start=\"%s\" end=\"2030-12-31T00:00:00\" value=\"%g\" days=\"127\" priority=\"998\" starttime=\"PT0M\" endtime=\"PT1440M\"/>\n</buckets></calendar>\n",
				quoteattr("SS for "+name), start, op.MinQty*uomFactor)
		}
		if op.MaxQty-op.MinQty > 0 {
			x.printf("<calendar name=%s default=\"0\"><buckets>\n<bucket start=\"%s\" end=\"2030-12-31T00:00:00\" value=\"%g\" days=\"127\" priority=\"998\" starttime=\"PT0M\" endtime=\"PT1440M\"/>\n</buckets></calendar>\n",
				quoteattr("ROQ for "+name), start, (op.MaxQty-op.MinQty)*uomFactor)
		}
	}
	if !first {
		x.write("</calendars>\n")
	}
	return nil
}

// exportInventory writes the on-hand stock. With expiry tracking the
// inventory exports as one STCK order per lot carrying the expiration
// date; otherwise plain buffer levels are enough.
func (r *run) exportInventory(ctx context.Context, x *xmlWriter) error {
	quants, err := r.st.OnhandQuants(ctx)
	if err != nil {
		return err
	}
	if r.trackExpiry {
		return r.writeStockOrders(x, quants)
	}

	x.write("<!-- inventory -->\n")
	x.write("<buffers>\n")
	type key struct{ item, location string }
	var order []key
	onhand := map[key]float64{}
	for _, q := range quants {
		if q.Quantity <= 0 {
			continue
		}
		item, ok := r.products[q.ProductID]
		if !ok {
			continue
		}
		location, ok := r.mapLocations[q.LocationID]
		if !ok {
			continue
		}
		k := key{item.Name, location}
		if _, seen := onhand[k]; !seen {
			order = append(order, k)
		}
		reserved := 0.0
		if r.respectReservations {
			reserved = q.Reserved
		}
		onhand[k] += q.Quantity - reserved
	}
	for _, k := range order {
		x.printf("<buffer name=%s onhand=\"%f\"><item name=%s/><location name=%s/></buffer>\n",
			quoteattr(k.item+" @ "+k.location), onhand[k], quoteattr(k.item), quoteattr(k.location))
	}
	x.write("</buffers>\n")
	return nil
}

func (r *run) writeStockOrders(x *xmlWriter, quants []models.StockQuant) error {
	x.write("<!-- inventory -->\n")
	x.write("<operationplans>\n")
	type key struct{ item, location, lot string }
	var order []key
	onhand := map[key]float64{}
	expiry := map[key]time.Time{}
	for _, q := range quants {
		if q.Quantity <= 0 {
			continue
		}
		item, ok := r.products[q.ProductID]
		if !ok {
			continue
		}
		location, ok := r.mapLocations[q.LocationID]
		if !ok {
			continue
		}
		k := key{item.Name, location, q.LotName}
		if _, seen := onhand[k]; !seen {
			order = append(order, k)
		}
		reserved := 0.0
		if r.respectReservations {
			reserved = q.Reserved
		}
		total := onhand[k] + q.Quantity - reserved
		if total < 0 {
			total = 0
		}
		onhand[k] = total
		if q.ExpirationDate != nil {
			expiry[k] = *q.ExpirationDate
		}
	}
	for _, k := range order {
		reference := fmt.Sprintf("STCK %s @ %s", k.item, k.location)
		if k.lot != "" {
			reference += " @ " + k.lot
		}
		expiryAttr := ""
		if exp, ok := expiry[k]; ok {
			expiryAttr = fmt.Sprintf("expiry=%q", fmtTime(exp, r.loc))
		}
		x.printf("<operationplan ordertype=\"STCK\" end=\"%s\" reference=%s %s quantity=\"%g\">\n<item name=%s/>\n<location name=%s/>\n</operationplan>\n",
			fmtTime(r.now, r.loc), quoteattr(reference), expiryAttr, onhand[k],
			quoteattr(k.item), quoteattr(k.location))
	}
	x.write("</operationplans>\n")
	return nil
}
