package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

func uptr(v uint) *uint { return &v }

// fakeStore records every mutation the import pipeline performs.
// Methods not implemented here panic through the embedded nil
// interface, which is exactly what a test touching them deserves.
type fakeStore struct {
	store.Store

	draftPOs int
	draftMOs int

	nextID     uint
	orders     []*models.PurchaseOrder
	lines      map[uint]*models.PurchaseOrderLine
	orderDates map[uint][2]time.Time

	products map[uint]*models.Product
	prices   map[uint][]models.SupplierPrice

	warehouses   map[string]*models.Warehouse
	mainLocs     map[uint]*models.StockLocation
	opTypes      map[string]*models.OperationType
	transfers    []*models.Transfer
	createdMoves []*models.StockMove
	updatedMoves []*models.StockMove

	mosByName   map[string]*models.ManufacturingOrder
	createdMOs  []*models.ManufacturingOrder
	updatedMOs  []*models.ManufacturingOrder
	qtyChanges  map[uint]float64
	pending     map[uint][]models.WorkOrder
	updatedWOs  []models.WorkOrder
	replaced    map[uint][]models.WorkOrderSecondaryAssignment
	workcenters map[uint]*models.Workcenter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lines:       map[uint]*models.PurchaseOrderLine{},
		orderDates:  map[uint][2]time.Time{},
		products:    map[uint]*models.Product{},
		prices:      map[uint][]models.SupplierPrice{},
		warehouses:  map[string]*models.Warehouse{},
		mainLocs:    map[uint]*models.StockLocation{},
		opTypes:     map[string]*models.OperationType{},
		mosByName:   map[string]*models.ManufacturingOrder{},
		qtyChanges:  map[uint]float64{},
		pending:     map[uint][]models.WorkOrder{},
		replaced:    map[uint][]models.WorkOrderSecondaryAssignment{},
		workcenters: map[uint]*models.Workcenter{},
	}
}

func (f *fakeStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CancelDraftPurchaseOrders(context.Context, uint) (int, error) {
	return f.draftPOs, nil
}

func (f *fakeStore) CancelDraftManufacturingOrders(context.Context, uint) (int, error) {
	return f.draftMOs, nil
}

func (f *fakeStore) CreatePurchaseOrder(_ context.Context, po *models.PurchaseOrder) error {
	po.ID = f.id()
	f.orders = append(f.orders, po)
	return nil
}

func (f *fakeStore) CreatePurchaseLine(_ context.Context, line *models.PurchaseOrderLine) error {
	line.ID = f.id()
	f.lines[line.ID] = line
	return nil
}

func (f *fakeStore) UpdatePurchaseLine(_ context.Context, line *models.PurchaseOrderLine) error {
	f.lines[line.ID] = line
	return nil
}

func (f *fakeStore) PurchaseLineByID(_ context.Context, id uint) (*models.PurchaseOrderLine, error) {
	line, ok := f.lines[id]
	if !ok {
		return nil, errors.New("purchase line not found")
	}
	return line, nil
}

func (f *fakeStore) UpdatePurchaseOrderDates(_ context.Context, id uint, planned, ordered time.Time) error {
	f.orderDates[id] = [2]time.Time{planned, ordered}
	return nil
}

func (f *fakeStore) ProductByID(_ context.Context, id uint) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

func (f *fakeStore) SupplierPricesForTemplate(_ context.Context, templateID uint) ([]models.SupplierPrice, error) {
	return f.prices[templateID], nil
}

func (f *fakeStore) FindSupplier(_ context.Context, name string) (*models.Partner, error) {
	return nil, errors.Errorf("supplier %q not found", name)
}

func (f *fakeStore) FindWarehouseByName(_ context.Context, name string) (*models.Warehouse, error) {
	wh, ok := f.warehouses[name]
	if !ok {
		return nil, errors.Errorf("warehouse %q not found", name)
	}
	return wh, nil
}

func (f *fakeStore) MainInternalLocation(_ context.Context, warehouseID uint) (*models.StockLocation, error) {
	loc, ok := f.mainLocs[warehouseID]
	if !ok {
		return nil, errors.New("no internal location")
	}
	return loc, nil
}

func (f *fakeStore) FindOperationType(_ context.Context, code string, warehouseID uint) (*models.OperationType, error) {
	ot, ok := f.opTypes[fmt.Sprintf("%s/%d", code, warehouseID)]
	if !ok {
		return nil, errors.Errorf("no %s operation type", code)
	}
	return ot, nil
}

func (f *fakeStore) CreateTransfer(_ context.Context, t *models.Transfer) error {
	t.ID = f.id()
	f.transfers = append(f.transfers, t)
	return nil
}

func (f *fakeStore) CreateTransferMove(_ context.Context, m *models.StockMove) error {
	m.ID = f.id()
	f.createdMoves = append(f.createdMoves, m)
	return nil
}

func (f *fakeStore) UpdateTransferMove(_ context.Context, m *models.StockMove) error {
	f.updatedMoves = append(f.updatedMoves, m)
	return nil
}

func (f *fakeStore) FindManufacturingOrderByName(_ context.Context, name string) (*models.ManufacturingOrder, error) {
	mo, ok := f.mosByName[name]
	if !ok {
		return nil, errors.Errorf("manufacturing order %q not found", name)
	}
	return mo, nil
}

func (f *fakeStore) CreateManufacturingOrder(_ context.Context, mo *models.ManufacturingOrder) error {
	mo.ID = f.id()
	f.createdMOs = append(f.createdMOs, mo)
	f.mosByName[mo.Name] = mo
	return nil
}

func (f *fakeStore) UpdateManufacturingOrder(_ context.Context, mo *models.ManufacturingOrder) error {
	f.updatedMOs = append(f.updatedMOs, mo)
	return nil
}

func (f *fakeStore) ChangeManufacturingQty(_ context.Context, id uint, qty float64) error {
	f.qtyChanges[id] = qty
	return nil
}

func (f *fakeStore) PendingWorkOrders(_ context.Context, manufacturingID uint) ([]models.WorkOrder, error) {
	return f.pending[manufacturingID], nil
}

func (f *fakeStore) UpdateWorkOrder(_ context.Context, wo *models.WorkOrder) error {
	f.updatedWOs = append(f.updatedWOs, *wo)
	return nil
}

func (f *fakeStore) ReplaceWorkOrderSecondaries(_ context.Context, workOrderID uint, secs []models.WorkOrderSecondaryAssignment) error {
	f.replaced[workOrderID] = secs
	return nil
}

func (f *fakeStore) WorkcenterByID(_ context.Context, id uint) (*models.Workcenter, error) {
	wc, ok := f.workcenters[id]
	if !ok {
		return nil, errors.New("workcenter not found")
	}
	return wc, nil
}

func runImport(t *testing.T, f *fakeStore, doc string, opts Options) string {
	t.Helper()
	summary, err := New(f, zerolog.Nop()).Run(context.Background(), strings.NewReader(doc), opts)
	require.NoError(t, err)
	return summary
}

func TestImportFullRefreshCancelsDrafts(t *testing.T) {
	f := newFakeStore()
	f.draftPOs = 3
	f.draftMOs = 2

	summary := runImport(t, f, `<plan><operationplans></operationplans></plan>`, Options{Mode: ModeFull})

	assert.Contains(t, summary, "Removed 3 old draft purchase orders")
	assert.Contains(t, summary, "Removed 2 old draft manufacturing orders")
	assert.Contains(t, summary, "Processed 0 uploaded procurement orders")
	assert.Contains(t, summary, "Processed 0 uploaded manufacturing orders")
}

func TestImportPurchaseProposals(t *testing.T) {
	f := newFakeStore()
	f.products[101] = &models.Product{ID: 101, TemplateID: 11}
	f.products[102] = &models.Product{ID: 102, TemplateID: 12}
	f.prices[11] = []models.SupplierPrice{
		{PartnerID: 2, MinQty: 0, Price: 4},
		{PartnerID: 2, MinQty: 10, Price: 3.5},
	}

	doc := `<plan><operationplans>
<operationplan ordertype="PO" reference="p1" item_id="1,101" item="Widget" supplier="Supplier LLC 2" quantity="10" start="2025-01-05 00:00:00" end="2025-01-10 00:00:00"/>
<operationplan ordertype="PO" reference="p2" item_id="1,101" item="Widget" supplier="Supplier LLC 2" quantity="5" start="2025-01-02 00:00:00" end="2025-01-04 00:00:00"/>
<operationplan ordertype="PO" reference="p3" item_id="1,102" item="Gadget" supplier="Supplier LLC 2" quantity="2" start="2025-01-06 00:00:00" end="2025-01-08 00:00:00"/>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental, CompanyID: 1})

	// One draft order for the supplier, marked as planner output.
	require.Len(t, f.orders, 1)
	po := f.orders[0]
	assert.Equal(t, "draft", po.State)
	assert.Equal(t, uint(2), po.PartnerID)
	assert.Equal(t, store.PlannerOrigin, po.Origin)

	// The repeated proposal for the same product folds onto one line
	// with the summed quantity and the earliest receipt date.
	require.Len(t, f.lines, 2)
	var widget, gadget *models.PurchaseOrderLine
	for _, line := range f.lines {
		switch *line.ProductID {
		case 101:
			widget = line
		case 102:
			gadget = line
		}
	}
	require.NotNil(t, widget)
	require.NotNil(t, gadget)
	assert.Equal(t, 15.0, widget.Quantity)
	assert.True(t, widget.DatePlanned.Equal(time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)))
	// Best price book match: the highest minimum quantity covered.
	assert.Equal(t, 3.5, widget.PriceUnit)
	assert.Equal(t, 2.0, gadget.Quantity)
	assert.Equal(t, 0.0, gadget.PriceUnit)

	// The header keeps the earliest dates of all proposals.
	dates, ok := f.orderDates[po.ID]
	require.True(t, ok)
	assert.True(t, dates[0].Equal(time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.True(t, dates[1].Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))

	assert.Contains(t, summary, "Processed 3 uploaded procurement orders")
}

func TestImportPurchasePageModeKeepsLinesSeparate(t *testing.T) {
	f := newFakeStore()
	f.products[101] = &models.Product{ID: 101, TemplateID: 11}

	doc := `<plan><operationplans>
<operationplan ordertype="PO" reference="p1" item_id="1,101" supplier="S 2" quantity="10" start="2025-01-05 00:00:00" end="2025-01-10 00:00:00"/>
<operationplan ordertype="PO" reference="p2" item_id="1,101" supplier="S 2" quantity="5" start="2025-01-02 00:00:00" end="2025-01-04 00:00:00"/>
</operationplans></plan>`
	runImport(t, f, doc, Options{Mode: ModePage, CompanyID: 1})

	// Still one order per supplier, but no line aggregation.
	assert.Len(t, f.orders, 1)
	assert.Len(t, f.lines, 2)
}

func TestImportPurchaseReschedule(t *testing.T) {
	f := newFakeStore()
	f.lines[9] = &models.PurchaseOrderLine{ID: 9, OrderID: 55, Quantity: 3}

	doc := `<plan><operationplans>
<operationplan ordertype="PO" status="confirmed" id="PO1 - 55 - 9" reference="PO1 - 55 - 9" item_id="1,101" item="Widget" supplier="Supplier LLC 2" quantity="7" start="2025-01-20 00:00:00" end="2025-02-01 00:00:00"/>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental})

	assert.Empty(t, f.orders)
	line := f.lines[9]
	assert.Equal(t, 7.0, line.Quantity)
	assert.Equal(t, uint(101), *line.ProductID)
	assert.True(t, line.DatePlanned.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Contains(t, summary, "Processed 1 uploaded procurement orders")
}

func TestImportDistribution(t *testing.T) {
	f := newFakeStore()
	f.warehouses["WH1"] = &models.Warehouse{ID: 1, Code: "WH1"}
	f.warehouses["WH2"] = &models.Warehouse{ID: 2, Code: "WH2"}
	f.mainLocs[1] = &models.StockLocation{ID: 11}
	f.mainLocs[2] = &models.StockLocation{ID: 12}
	f.opTypes["internal/1"] = &models.OperationType{ID: 21, SequenceCode: "INT"}

	doc := `<plan><operationplans>
<operationplan ordertype="DO" reference="d1" item_id="1,101" origin="WH1" destination="WH2" quantity="4" start="2025-01-10 00:00:00"/>
<operationplan ordertype="DO" reference="d2" item_id="1,101" origin="WH1" destination="WH2" quantity="6" start="2025-01-08 00:00:00"/>
</operationplans></plan>`
	runImport(t, f, doc, Options{Mode: ModeIncremental})

	// Both proposals ride the same transfer and the same move.
	require.Len(t, f.transfers, 1)
	tr := f.transfers[0]
	assert.Equal(t, "INT WH1 WH2", tr.Name)
	assert.Equal(t, uint(11), tr.LocationID)
	assert.Equal(t, uint(12), tr.LocationDestID)
	assert.Equal(t, store.PlannerOrigin, tr.Origin)

	require.Len(t, f.createdMoves, 1)
	require.Len(t, f.updatedMoves, 1)
	mv := f.updatedMoves[0]
	assert.Equal(t, 10.0, mv.UomQty)
	assert.True(t, mv.Date.Equal(time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "INT WH1 WH2 1", f.createdMoves[0].Name)
}

func TestImportManufacturingProposal(t *testing.T) {
	f := newFakeStore()
	f.opTypes["mrp_operation/1"] = &models.OperationType{ID: 22, DefaultLocationDestID: uptr(13)}
	// The first created record receives id 1; its pending work order
	// points at the pool the plan resolved a member of.
	f.pending[1] = []models.WorkOrder{{
		ID: 700, ManufacturingID: 1, RoutingStepID: uptr(31),
		WorkcenterID: uptr(4), DurationExpected: 60,
	}}
	f.workcenters[5] = &models.Workcenter{ID: 5, OwnerID: uptr(4)}

	doc := `<plan><operationplans>
<operationplan reference="MO-0007" item_id="1,101" quantity="4" location_id="1" operation="Widget @ WH1 12" start="2025-01-10 08:00:00" end="2025-01-12 17:00:00">
<workorder operation="Cutting - 31" start="2025-01-10 08:00:00" end="2025-01-11 12:00:00">
<resource id="5" name="CNC 2" quantity="1"/>
</workorder>
</operationplan>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental, CompanyID: 1})

	require.Len(t, f.createdMOs, 1)
	mo := f.createdMOs[0]
	assert.Equal(t, "MO-0007", mo.Name)
	assert.Equal(t, "draft", mo.State)
	assert.Equal(t, uint(12), *mo.BOMID)
	assert.Equal(t, uint(13), *mo.LocationDestID)
	assert.Equal(t, store.PlannerOrigin, mo.Origin)
	assert.Equal(t, 4.0, mo.Quantity)
	require.NotNil(t, mo.DateStart)
	assert.True(t, mo.DateStart.Equal(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))

	// The nested schedule lands on the work order and the pool is
	// narrowed to the member the plan picked.
	require.Len(t, f.updatedWOs, 1)
	wo := f.updatedWOs[0]
	assert.Equal(t, uint(5), *wo.WorkcenterID)
	require.NotNil(t, wo.DateStart)
	assert.True(t, wo.DateStart.Equal(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, wo.DateFinished)
	assert.True(t, wo.DateFinished.Equal(time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC)))
	assert.Empty(t, f.replaced)

	assert.Contains(t, summary, "Processed 1 uploaded manufacturing orders")
}

func TestImportManufacturingUpdate(t *testing.T) {
	f := newFakeStore()
	f.opTypes["mrp_operation/1"] = &models.OperationType{ID: 22}
	f.mosByName["MO-9"] = &models.ManufacturingOrder{ID: 40, Name: "MO-9", Quantity: 4}

	doc := `<plan><operationplans>
<operationplan status="confirmed" reference="MO-9" item_id="1,101" quantity="6" location_id="1" start="2025-01-10 08:00:00" end="2025-01-12 17:00:00"/>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental})

	assert.Empty(t, f.createdMOs)
	assert.Equal(t, 6.0, f.qtyChanges[40])
	require.Len(t, f.updatedMOs, 1)
	mo := f.updatedMOs[0]
	assert.Equal(t, store.PlannerOrigin, mo.Origin)
	require.NotNil(t, mo.DateStart)
	assert.True(t, mo.DateStart.Equal(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
	assert.Contains(t, summary, "Processed 1 uploaded manufacturing orders")
}

func TestImportWorkOrderReschedule(t *testing.T) {
	f := newFakeStore()
	f.mosByName["MO-77"] = &models.ManufacturingOrder{ID: 77, Name: "MO-77"}
	f.pending[77] = []models.WorkOrder{{
		ID: 701, ManufacturingID: 77, DisplayName: "Step A",
		RoutingStepID: uptr(31), WorkcenterID: uptr(3),
		RoutingStep: &models.RoutingStep{ID: 31, WorkcenterID: uptr(3)},
	}}
	f.workcenters[8] = &models.Workcenter{ID: 8, OwnerID: uptr(3)}

	doc := `<plan><operationplans>
<operationplan ordertype="WO" reference="w1" owner="MO-77" operation="Step A" start="2025-01-10 08:00:00" end="2025-01-10 12:00:00">
<resource id="8" name="Lathe 2"/>
</operationplan>
</operationplans></plan>`
	runImport(t, f, doc, Options{Mode: ModeIncremental})

	require.Len(t, f.updatedWOs, 1)
	wo := f.updatedWOs[0]
	// Resource 8 is a member of the pool the step points at, so it
	// becomes the primary workcenter.
	assert.Equal(t, uint(8), *wo.WorkcenterID)
	require.NotNil(t, wo.DateStart)
	assert.True(t, wo.DateStart.Equal(time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, wo.DateFinished)
	assert.True(t, wo.DateFinished.Equal(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)))
}

func TestImportWorkOrderOfClosedOrderIsIgnored(t *testing.T) {
	f := newFakeStore()

	doc := `<plan><operationplans>
<operationplan ordertype="WO" reference="w1" owner="MO-GONE" operation="Step A" start="2025-01-10 08:00:00" end="2025-01-10 12:00:00"/>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental})

	assert.Empty(t, f.updatedWOs)
	assert.Contains(t, summary, "Processed 0 uploaded manufacturing orders")
}

func TestImportBadElementContinues(t *testing.T) {
	f := newFakeStore()
	f.products[101] = &models.Product{ID: 101, TemplateID: 11}

	doc := `<plan><operationplans>
<operationplan ordertype="PO" reference="bad" item_id="1,101" supplier="nobody" quantity="10" start="2025-01-05 00:00:00" end="2025-01-10 00:00:00"/>
<operationplan ordertype="PO" reference="good" item_id="1,101" supplier="S 2" quantity="10" start="2025-01-05 00:00:00" end="2025-01-10 00:00:00"/>
</operationplans></plan>`
	summary := runImport(t, f, doc, Options{Mode: ModeIncremental})

	assert.Contains(t, summary, `cannot resolve supplier "nobody"`)
	assert.Contains(t, summary, "Processed 1 uploaded procurement orders")
	assert.Len(t, f.orders, 1)
}
