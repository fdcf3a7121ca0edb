// Package importer applies a finite-capacity plan back onto the
// transactional store. The planner posts one XML document with proposed
// and updated operationplans; the importer walks it as a token stream
// and turns every element into purchase, transfer and manufacturing
// records. A failing element never aborts the document: its error is
// collected into the reply and parsing moves on.
package importer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

// planTimeLayout is the timestamp format used in planner documents.
const planTimeLayout = "2006-01-02 15:04:05"

// Run modes. A full refresh first removes the draft proposals of the
// previous run. Incremental runs keep them and additionally aggregate
// repeated purchase proposals for the same product and supplier onto
// one line. Page mode is used from the second page of a chunked upload
// and must not aggregate across pages.
const (
	ModeFull        = 1
	ModeIncremental = 2
	ModePage        = 3
)

type Options struct {
	Mode      int
	CompanyID uint
	// Location interprets the naive timestamps of the document.
	Location *time.Location
}

type Importer struct {
	st  store.Store
	log zerolog.Logger
}

func New(st store.Store, log zerolog.Logger) *Importer {
	return &Importer{st: st, log: log.With().Str("component", "importer").Logger()}
}

// poHeader aggregates all proposals for one supplier onto a single
// purchase order, tracking the earliest dates seen.
type poHeader struct {
	id         uint
	minPlanned time.Time
	minOrdered time.Time
}

type lineKey struct {
	itemID     uint
	supplierID uint
}

type moveKey struct {
	productID  uint
	transferID uint
}

type woResource struct {
	id       uint
	name     string
	quantity float64
}

// woRecord carries the schedule of one routing step nested inside a
// manufacturing operationplan.
type woRecord struct {
	stepID      uint
	start       *time.Time
	end         *time.Time
	workcenters []woResource
}

// run is the state of one document.
type run struct {
	im   *Importer
	opts Options
	loc  *time.Location

	countProc int
	countMfg  int
	messages  []string

	suppliers map[uint]*poHeader
	poLines   map[lineKey]uint
	moRefs    map[string]*models.ManufacturingOrder
	transfers map[[2]string]*models.Transfer
	moves     map[moveKey]*models.StockMove
	doIndex   int

	woData    []woRecord
	resources []uint
}

// Run parses one planner document and returns a human-readable summary
// of what was applied.
func (im *Importer) Run(ctx context.Context, rd io.Reader, opts Options) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	r := &run{
		im:        im,
		opts:      opts,
		loc:       loc,
		suppliers: map[uint]*poHeader{},
		poLines:   map[lineKey]uint{},
		moRefs:    map[string]*models.ManufacturingOrder{},
		transfers: map[[2]string]*models.Transfer{},
		moves:     map[moveKey]*models.StockMove{},
	}

	if opts.Mode == ModeFull {
		n, err := im.st.CancelDraftPurchaseOrders(ctx, opts.CompanyID)
		if err != nil {
			return "", err
		}
		r.messages = append(r.messages, fmt.Sprintf("Removed %d old draft purchase orders", n))
		n, err = im.st.CancelDraftManufacturingOrders(ctx, opts.CompanyID)
		if err != nil {
			return "", err
		}
		r.messages = append(r.messages, fmt.Sprintf("Removed %d old draft manufacturing orders", n))
	}

	dec := xml.NewDecoder(rd)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "malformed plan document")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "operationplan":
				attrs := attrMap(t)
				if attrs["ordertype"] == "WO" {
					r.resources = nil
				}
				if err := r.process(ctx, dec, attrs); err != nil {
					im.log.Error().Err(err).Str("reference", attrs["reference"]).
						Msg("failed to apply operationplan")
					r.messages = append(r.messages, err.Error())
				}
				r.woData = nil
			}
		}
	}

	for _, sup := range r.suppliers {
		err := im.st.UpdatePurchaseOrderDates(ctx, sup.id, sup.minPlanned, sup.minOrdered)
		if err != nil {
			r.messages = append(r.messages, err.Error())
		}
	}

	r.messages = append(r.messages,
		fmt.Sprintf("Processed %d uploaded procurement orders", r.countProc),
		fmt.Sprintf("Processed %d uploaded manufacturing orders", r.countMfg))
	return strings.Join(r.messages, "\n"), nil
}

// process consumes the body of one operationplan element and applies
// it. Nested workorder and resource elements are read off the decoder
// before the dispatch on ordertype.
func (r *run) process(ctx context.Context, dec *xml.Decoder, attrs map[string]string) error {
	if err := r.readBody(dec); err != nil {
		return err
	}
	switch attrs["ordertype"] {
	case "PO":
		return r.applyPurchase(ctx, attrs)
	case "DO":
		return r.applyDistribution(ctx, attrs)
	case "WO":
		return r.applyWorkOrder(ctx, attrs)
	default:
		return r.applyManufacturing(ctx, attrs)
	}
}

// readBody walks the children of an operationplan, collecting the
// nested workorder schedules and resource assignments until the
// matching end tag.
func (r *run) readBody(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "malformed plan document")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			attrs := attrMap(t)
			switch t.Name.Local {
			case "workorder":
				if op := attrs["operation"]; op != "" {
					r.addWorkOrderRecord(op, attrs)
				}
			case "resource":
				if id, err := strconv.ParseUint(attrs["id"], 10, 64); err == nil {
					r.resources = append(r.resources, uint(id))
					if len(r.woData) > 0 {
						qty, _ := strconv.ParseFloat(attrs["quantity"], 64)
						last := &r.woData[len(r.woData)-1]
						last.workcenters = append(last.workcenters, woResource{
							id:       uint(id),
							name:     attrs["name"],
							quantity: qty,
						})
					}
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

func (r *run) addWorkOrderRecord(operation string, attrs map[string]string) {
	// Routing step operations are named "<step> - <id>".
	idx := strings.LastIndex(operation, "- ")
	if idx < 0 {
		return
	}
	stepID, err := strconv.ParseUint(strings.TrimSpace(operation[idx+2:]), 10, 64)
	if err != nil {
		return
	}
	rec := woRecord{stepID: uint(stepID)}
	if t, err := time.ParseInLocation(planTimeLayout, attrs["start"], r.loc); err == nil {
		utc := t.UTC()
		rec.start = &utc
	}
	if t, err := time.ParseInLocation(planTimeLayout, attrs["end"], r.loc); err == nil {
		utc := t.UTC()
		rec.end = &utc
	}
	r.woData = append(r.woData, rec)
}

// parseItemRef splits the "uomID,productID" item subcategory that the
// export round-trips through the planner.
func parseItemRef(attrs map[string]string) (uomID, productID uint, err error) {
	parts := strings.SplitN(attrs["item_id"], ",", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("missing item reference on operationplan %q", attrs["reference"])
	}
	u, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "bad unit reference %q", parts[0])
	}
	p, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "bad product reference %q", parts[1])
	}
	return uint(u), uint(p), nil
}

// lastToken returns the substring after the final occurrence of sep.
func lastToken(s, sep string) string {
	if idx := strings.LastIndex(s, sep); idx >= 0 {
		return s[idx+len(sep):]
	}
	return s
}

func (r *run) applyPurchase(ctx context.Context, attrs map[string]string) error {
	uomID, productID, err := parseItemRef(attrs)
	if err != nil {
		return err
	}
	supplierID, err := strconv.ParseUint(lastToken(attrs["supplier"], " "), 10, 64)
	if err != nil {
		// Hand-entered supplier names carry no trailing id.
		partner, ferr := r.im.st.FindSupplier(ctx, attrs["supplier"])
		if ferr != nil {
			return errors.Errorf("cannot resolve supplier %q", attrs["supplier"])
		}
		supplierID = uint64(partner.ID)
	}
	quantity, err := strconv.ParseFloat(attrs["quantity"], 64)
	if err != nil {
		return errors.Errorf("bad quantity %q on %q", attrs["quantity"], attrs["reference"])
	}
	datePlanned, err := time.ParseInLocation(planTimeLayout, attrs["end"], r.loc)
	if err != nil {
		return errors.Errorf("bad receipt date %q on %q", attrs["end"], attrs["reference"])
	}
	dateOrdered, err := time.ParseInLocation(planTimeLayout, attrs["start"], r.loc)
	if err != nil {
		dateOrdered = datePlanned
	}

	// Approved or confirmed proposals reschedule an existing line. The
	// reference carries the line id as its last token.
	if status := attrs["status"]; status == "approved" || status == "confirmed" {
		ref := attrs["id"]
		if ref == "" {
			ref = attrs["reference"]
		}
		lineID, err := strconv.ParseUint(strings.TrimSpace(lastToken(ref, " - ")), 10, 64)
		if err != nil {
			return errors.Errorf("unable to find purchase order line %q", ref)
		}
		line, err := r.im.st.PurchaseLineByID(ctx, uint(lineID))
		if err != nil {
			return errors.Errorf("unable to find purchase order line %q", ref)
		}
		line.ProductID = &productID
		line.Quantity = quantity
		line.UomID = &uomID
		line.DatePlanned = datePlanned
		line.Name = attrs["item"]
		if err := r.im.st.UpdatePurchaseLine(ctx, line); err != nil {
			return err
		}
		r.countProc++
		return nil
	}

	// One order per supplier, collecting the earliest dates.
	sup, ok := r.suppliers[uint(supplierID)]
	if !ok {
		companyID := r.opts.CompanyID
		po := &models.PurchaseOrder{
			State:     "draft",
			PartnerID: uint(supplierID),
			Origin:    store.PlannerOrigin,
			OrderDate: dateOrdered,
			CompanyID: &companyID,
		}
		if err := r.im.st.CreatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		sup = &poHeader{id: po.ID, minPlanned: datePlanned, minOrdered: dateOrdered}
		r.suppliers[uint(supplierID)] = sup
	} else {
		if datePlanned.Before(sup.minPlanned) {
			sup.minPlanned = datePlanned
		}
		if dateOrdered.Before(sup.minOrdered) {
			sup.minOrdered = dateOrdered
		}
	}

	key := lineKey{itemID: productID, supplierID: uint(supplierID)}
	if lineID, ok := r.poLines[key]; ok {
		line, err := r.im.st.PurchaseLineByID(ctx, lineID)
		if err != nil {
			return err
		}
		if datePlanned.Before(line.DatePlanned) {
			line.DatePlanned = datePlanned
		}
		line.Quantity += quantity
		if err := r.im.st.UpdatePurchaseLine(ctx, line); err != nil {
			return err
		}
	} else {
		line := &models.PurchaseOrderLine{
			OrderID:     sup.id,
			Name:        attrs["item"],
			ProductID:   &productID,
			Quantity:    quantity,
			UomID:       &uomID,
			DatePlanned: datePlanned,
			PriceUnit:   r.supplierPrice(ctx, productID, uint(supplierID), quantity),
		}
		if err := r.im.st.CreatePurchaseLine(ctx, line); err != nil {
			return err
		}
		// Aggregation onto one line only happens in incremental runs.
		if r.opts.Mode == ModeIncremental {
			r.poLines[key] = line.ID
		}
	}
	r.countProc++
	return nil
}

// supplierPrice finds the best matching price-book line: the highest
// minimum quantity still covered by the ordered quantity. Zero when no
// line matches.
func (r *run) supplierPrice(ctx context.Context, productID, supplierID uint, quantity float64) float64 {
	product, err := r.im.st.ProductByID(ctx, productID)
	if err != nil {
		return 0
	}
	prices, err := r.im.st.SupplierPricesForTemplate(ctx, product.TemplateID)
	if err != nil {
		return 0
	}
	best := -1.0
	price := 0.0
	for _, p := range prices {
		if p.PartnerID != supplierID || p.MinQty > quantity {
			continue
		}
		if p.MinQty > best {
			best = p.MinQty
			price = p.Price
		}
	}
	return price
}

func (r *run) applyDistribution(ctx context.Context, attrs map[string]string) error {
	uomID, productID, err := parseItemRef(attrs)
	if err != nil {
		return err
	}
	quantity, err := strconv.ParseFloat(attrs["quantity"], 64)
	if err != nil {
		return errors.Errorf("bad quantity %q on %q", attrs["quantity"], attrs["reference"])
	}
	r.doIndex++
	origin := attrs["origin"]
	destination := attrs["destination"]

	originWh, err := r.im.st.FindWarehouseByName(ctx, origin)
	if err != nil {
		return err
	}
	destWh, err := r.im.st.FindWarehouseByName(ctx, destination)
	if err != nil {
		return err
	}
	srcLoc, err := r.im.st.MainInternalLocation(ctx, originWh.ID)
	if err != nil {
		return errors.Wrapf(err, "no stocking location for %q", origin)
	}
	destLoc, err := r.im.st.MainInternalLocation(ctx, destWh.ID)
	if err != nil {
		return errors.Wrapf(err, "no stocking location for %q", destination)
	}
	opType, err := r.im.st.FindOperationType(ctx, "internal", originWh.ID)
	if err != nil {
		return errors.Wrapf(err, "no internal transfer type for %q", origin)
	}

	date, err := time.ParseInLocation(planTimeLayout, attrs["start"], r.loc)
	if err != nil {
		date = time.Now()
	}

	key := [2]string{origin, destination}
	transfer, ok := r.transfers[key]
	if !ok {
		transfer = &models.Transfer{
			Name:            fmt.Sprintf("%s %s %s", opType.SequenceCode, origin, destination),
			OperationTypeID: opType.ID,
			ScheduledDate:   date,
			LocationID:      srcLoc.ID,
			LocationDestID:  destLoc.ID,
			MoveType:        "direct",
			Origin:          store.PlannerOrigin,
		}
		if err := r.im.st.CreateTransfer(ctx, transfer); err != nil {
			return err
		}
		r.transfers[key] = transfer
	}

	mk := moveKey{productID: productID, transferID: transfer.ID}
	if mv, ok := r.moves[mk]; ok {
		if date.Before(mv.Date) {
			mv.Date = date
		}
		mv.UomQty += quantity
		return r.im.st.UpdateTransferMove(ctx, mv)
	}
	mv := &models.StockMove{
		Name:           fmt.Sprintf("%s %d", transfer.Name, r.doIndex),
		State:          "draft",
		ProductID:      productID,
		Date:           date,
		UomQty:         quantity,
		UomID:          &uomID,
		LocationID:     &transfer.LocationID,
		LocationDestID: &transfer.LocationDestID,
		TransferID:     &transfer.ID,
		Origin:         store.PlannerOrigin,
	}
	if err := r.im.st.CreateTransferMove(ctx, mv); err != nil {
		return err
	}
	r.moves[mk] = mv
	return nil
}

func (r *run) applyWorkOrder(ctx context.Context, attrs map[string]string) error {
	owner := attrs["owner"]
	mo, ok := r.moRefs[owner]
	if !ok {
		found, err := r.im.st.FindManufacturingOrderByName(ctx, owner)
		if err != nil {
			// The planner may reschedule work orders of an order that
			// was closed in the meantime.
			r.im.log.Warn().Str("owner", owner).Msg("manufacturing order not found")
			return nil
		}
		mo = found
	}
	wos, err := r.im.st.PendingWorkOrders(ctx, mo.ID)
	if err != nil {
		return err
	}
	for i := range wos {
		wo := &wos[i]
		if wo.DisplayName != attrs["operation"] {
			continue
		}
		start, err := time.ParseInLocation(planTimeLayout, attrs["start"], r.loc)
		if err != nil {
			return errors.Errorf("bad start date %q on work order %q", attrs["start"], attrs["operation"])
		}
		end, err := time.ParseInLocation(planTimeLayout, attrs["end"], r.loc)
		if err != nil {
			return errors.Errorf("bad end date %q on work order %q", attrs["end"], attrs["operation"])
		}
		startUTC, endUTC := start.UTC(), end.UTC()
		wo.DateStart = &startUTC
		wo.DateFinished = &endUTC

		secondariesChanged := false
		for _, resID := range r.resources {
			res, err := r.im.st.WorkcenterByID(ctx, resID)
			if err != nil {
				continue
			}
			step := wo.RoutingStep
			if step == nil || step.WorkcenterID == nil ||
				*step.WorkcenterID == res.ID ||
				(res.OwnerID != nil && *step.WorkcenterID == *res.OwnerID) {
				// The planner picked this resource as primary, either
				// directly or as a member of the step's pool.
				id := res.ID
				wo.WorkcenterID = &id
				continue
			}
			for j := range wo.Secondaries {
				sec := &wo.Secondaries[j]
				assigned, err := r.im.st.WorkcenterByID(ctx, sec.WorkcenterID)
				if err != nil {
					continue
				}
				if assigned.OwnerID != nil && *assigned.OwnerID == res.ID {
					// Already a member of this pool.
					break
				}
				if assigned.OwnerID != nil && res.OwnerID != nil && *assigned.OwnerID == *res.OwnerID {
					sec.WorkcenterID = res.ID
					secondariesChanged = true
					break
				}
			}
		}
		if err := r.im.st.UpdateWorkOrder(ctx, wo); err != nil {
			return err
		}
		if secondariesChanged {
			if err := r.im.st.ReplaceWorkOrderSecondaries(ctx, wo.ID, wo.Secondaries); err != nil {
				return err
			}
		}
		break
	}
	return nil
}

func (r *run) applyManufacturing(ctx context.Context, attrs map[string]string) error {
	uomID, productID, err := parseItemRef(attrs)
	if err != nil {
		return err
	}
	quantity, err := strconv.ParseFloat(attrs["quantity"], 64)
	if err != nil {
		return errors.Errorf("bad quantity %q on %q", attrs["quantity"], attrs["reference"])
	}
	warehouseID, err := strconv.ParseUint(attrs["location_id"], 10, 64)
	if err != nil {
		return errors.Errorf("bad location reference %q on %q", attrs["location_id"], attrs["reference"])
	}
	opType, err := r.im.st.FindOperationType(ctx, "mrp_operation", uint(warehouseID))
	if err != nil {
		return err
	}
	start, startErr := time.ParseInLocation(planTimeLayout, attrs["start"], r.loc)
	end, endErr := time.ParseInLocation(planTimeLayout, attrs["end"], r.loc)
	reference := attrs["reference"]

	status := attrs["status"]
	if status == "" {
		status = "proposed"
	}
	var mo *models.ManufacturingOrder
	if status == "proposed" {
		bomID, err := strconv.ParseUint(lastToken(attrs["operation"], " "), 10, 64)
		if err != nil {
			return errors.Errorf("cannot resolve recipe from operation %q", attrs["operation"])
		}
		companyID := r.opts.CompanyID
		bid := uint(bomID)
		otID := opType.ID
		mo = &models.ManufacturingOrder{
			Name:            reference,
			State:           "draft",
			ProductID:       productID,
			Quantity:        quantity,
			QtyProducing:    0,
			UomID:           &uomID,
			BOMID:           &bid,
			LocationDestID:  opType.DefaultLocationDestID,
			OperationTypeID: &otID,
			Origin:          store.PlannerOrigin,
			CompanyID:       &companyID,
		}
		if startErr == nil {
			utc := start.UTC()
			mo.DateStart = &utc
		}
		if endErr == nil {
			utc := end.UTC()
			mo.DateFinished = &utc
		}
		if err := r.im.st.CreateManufacturingOrder(ctx, mo); err != nil {
			return err
		}
		r.moRefs[reference] = mo
	} else {
		mo, err = r.im.st.FindManufacturingOrderByName(ctx, reference)
		if err != nil {
			return errors.Errorf("unable to find manufacturing order %q", reference)
		}
		if mo.Quantity != quantity {
			if err := r.im.st.ChangeManufacturingQty(ctx, mo.ID, quantity); err != nil {
				return err
			}
			mo.Quantity = quantity
		}
		if startErr == nil {
			utc := start.UTC()
			mo.DateStart = &utc
		}
		if endErr == nil {
			utc := end.UTC()
			mo.DateFinished = &utc
		}
		mo.Origin = store.PlannerOrigin
		if err := r.im.st.UpdateManufacturingOrder(ctx, mo); err != nil {
			return err
		}
		r.moRefs[reference] = mo
	}

	if len(r.woData) > 0 {
		if err := r.applyWorkOrderData(ctx, mo); err != nil {
			return err
		}
	}
	r.countMfg++
	return nil
}

// applyWorkOrderData pushes the nested workorder schedules of a
// manufacturing operationplan onto the order's work orders, matched by
// routing step.
func (r *run) applyWorkOrderData(ctx context.Context, mo *models.ManufacturingOrder) error {
	wos, err := r.im.st.PendingWorkOrders(ctx, mo.ID)
	if err != nil {
		return err
	}
	for i := range wos {
		wo := &wos[i]
		if wo.RoutingStepID == nil {
			continue
		}
		for _, rec := range r.woData {
			if rec.stepID != *wo.RoutingStepID {
				continue
			}
			// The scheduled dates are normally only set when the order
			// is confirmed and planned. The plan already knows them.
			if rec.start != nil {
				wo.DateStart = rec.start
			}
			if rec.end != nil {
				wo.DateFinished = rec.end
			}
			var added []models.WorkOrderSecondaryAssignment
			for _, res := range rec.workcenters {
				if wo.WorkcenterID != nil && res.id == *wo.WorkcenterID {
					continue
				}
				wc, err := r.im.st.WorkcenterByID(ctx, res.id)
				if err != nil {
					continue
				}
				if wo.WorkcenterID != nil && wc.OwnerID != nil && *wc.OwnerID == *wo.WorkcenterID {
					// The plan picked a concrete member of the pool the
					// work order was pointing at.
					id := res.id
					wo.WorkcenterID = &id
				} else {
					added = append(added, models.WorkOrderSecondaryAssignment{
						WorkcenterID: res.id,
						Duration:     res.quantity * wo.DurationExpected,
					})
				}
			}
			if err := r.im.st.UpdateWorkOrder(ctx, wo); err != nil {
				return err
			}
			if len(added) > 0 {
				secs := append(wo.Secondaries, added...)
				if err := r.im.st.ReplaceWorkOrderSecondaries(ctx, wo.ID, secs); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func attrMap(el xml.StartElement) map[string]string {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}
	return attrs
}
