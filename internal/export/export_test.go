package export

import (
	"bytes"
	"context"
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

// fixtureStore serves canned snapshots to the export pipeline.
type fixtureStore struct {
	companies     []models.Company
	users         []models.User
	uoms          []models.UnitOfMeasure
	warehouses    []models.Warehouse
	locations     []models.StockLocation
	partners      []models.Partner
	categories    []models.ProductCategory
	templates     []models.ProductTemplate
	products      []models.Product
	prices        []models.SupplierPrice
	calendars     []models.Calendar
	attendances   []models.CalendarAttendance
	leaves        []models.CalendarLeave
	workcenters   []models.Workcenter
	skills        []models.Skill
	wcSkills      []models.WorkcenterSkill
	steps         []models.RoutingStep
	secondaries   []models.SecondaryWorkcenter
	boms          []models.BOM
	bomLines      []models.BOMLine
	salesLines    []models.SalesOrderLine
	openMoves     []models.StockMove
	purchaseLines []models.PurchaseOrderLine
	mos           []models.ManufacturingOrder
	orderpoints   []models.Orderpoint
	quants        []models.StockQuant
	opTypes       []models.OperationType
}

var _ store.Reader = (*fixtureStore)(nil)

func (f *fixtureStore) CompanyByName(_ context.Context, name string) (*models.Company, error) {
	for i := range f.companies {
		if f.companies[i].Name == name {
			return &f.companies[i], nil
		}
	}
	return nil, errors.New("company not found")
}

func (f *fixtureStore) UserByLogin(_ context.Context, login string) (*models.User, error) {
	for i := range f.users {
		if f.users[i].Login == login {
			return &f.users[i], nil
		}
	}
	return nil, errors.New("user not found")
}

func (f *fixtureStore) PartnerByID(_ context.Context, id uint) (*models.Partner, error) {
	for i := range f.partners {
		if f.partners[i].ID == id {
			return &f.partners[i], nil
		}
	}
	return nil, errors.New("partner not found")
}

func (f *fixtureStore) Users(context.Context) ([]models.User, error)          { return f.users, nil }
func (f *fixtureStore) UnitsOfMeasure(context.Context) ([]models.UnitOfMeasure, error) {
	return f.uoms, nil
}
func (f *fixtureStore) Warehouses(context.Context) ([]models.Warehouse, error) {
	return f.warehouses, nil
}
func (f *fixtureStore) InternalLocations(context.Context) ([]models.StockLocation, error) {
	return f.locations, nil
}
func (f *fixtureStore) Partners(context.Context) ([]models.Partner, error) { return f.partners, nil }
func (f *fixtureStore) Categories(context.Context) ([]models.ProductCategory, error) {
	return f.categories, nil
}
func (f *fixtureStore) Templates(context.Context) ([]models.ProductTemplate, error) {
	return f.templates, nil
}
func (f *fixtureStore) Products(context.Context) ([]models.Product, error) { return f.products, nil }
func (f *fixtureStore) SupplierPrices(context.Context) ([]models.SupplierPrice, error) {
	return f.prices, nil
}
func (f *fixtureStore) Calendars(context.Context) ([]models.Calendar, error) {
	return f.calendars, nil
}
func (f *fixtureStore) Attendances(context.Context) ([]models.CalendarAttendance, error) {
	return f.attendances, nil
}
func (f *fixtureStore) Leaves(context.Context) ([]models.CalendarLeave, error) {
	return f.leaves, nil
}
func (f *fixtureStore) Workcenters(context.Context) ([]models.Workcenter, error) {
	return f.workcenters, nil
}
func (f *fixtureStore) Skills(context.Context) ([]models.Skill, error) { return f.skills, nil }
func (f *fixtureStore) WorkcenterSkills(context.Context) ([]models.WorkcenterSkill, error) {
	return f.wcSkills, nil
}
func (f *fixtureStore) RoutingSteps(context.Context) ([]models.RoutingStep, error) {
	return f.steps, nil
}
func (f *fixtureStore) SecondaryWorkcenters(context.Context) ([]models.SecondaryWorkcenter, error) {
	return f.secondaries, nil
}
func (f *fixtureStore) BOMs(context.Context) ([]models.BOM, error)         { return f.boms, nil }
func (f *fixtureStore) BOMLines(context.Context) ([]models.BOMLine, error) { return f.bomLines, nil }
func (f *fixtureStore) SalesOrderLines(context.Context, time.Time) ([]models.SalesOrderLine, error) {
	return f.salesLines, nil
}
func (f *fixtureStore) OpenStockMoves(context.Context) ([]models.StockMove, error) {
	return f.openMoves, nil
}
func (f *fixtureStore) OpenPurchaseLines(context.Context) ([]models.PurchaseOrderLine, error) {
	return f.purchaseLines, nil
}
func (f *fixtureStore) ActiveManufacturingOrders(context.Context) ([]models.ManufacturingOrder, error) {
	return f.mos, nil
}
func (f *fixtureStore) Orderpoints(context.Context) ([]models.Orderpoint, error) {
	return f.orderpoints, nil
}
func (f *fixtureStore) OnhandQuants(context.Context) ([]models.StockQuant, error) {
	return f.quants, nil
}
func (f *fixtureStore) OperationTypes(context.Context) ([]models.OperationType, error) {
	return f.opTypes, nil
}

// newFixture builds one small but complete company: a warehouse with a
// stock location, a customer, a supplier with a price-book line, one
// product, a workcenter, open orders of every kind, a reordering rule
// and on-hand stock.
func newFixture() *fixtureStore {
	due := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	startDate := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	return &fixtureStore{
		companies: []models.Company{{
			ID:                       1,
			Name:                     "Acme",
			PurchaseLead:             1,
			ManufacturingLead:        2,
			CalendarID:               uintPtr(1),
			ManufacturingWarehouseID: uintPtr(1),
			RespectReservations:      true,
			TrackWorkOrders:          true,
		}},
		users: []models.User{
			{ID: 1, Name: "Planner", Login: "planner", PlannerUser: true},
			{ID: 2, Name: "Clerk", Login: "clerk"},
		},
		uoms: []models.UnitOfMeasure{
			{ID: 1, Name: "Units", Factor: 1, Category: 1, Active: true},
		},
		warehouses: []models.Warehouse{{ID: 1, Name: "Main Warehouse", Code: "WH"}},
		locations: []models.StockLocation{
			{ID: 1, Name: "Stock", Usage: "internal", WarehouseID: uintPtr(1)},
		},
		partners: []models.Partner{
			{ID: 1, Name: "Customer Inc", IsCompany: true, Active: true},
			{ID: 2, Name: "Supplier LLC", IsCompany: true, Active: true},
		},
		categories: []models.ProductCategory{{ID: 1, CompleteName: "All"}},
		templates: []models.ProductTemplate{{
			ID: 1, Type: "product", PurchaseOK: true, ListPrice: 10,
			UomID: uintPtr(1), CategoryID: uintPtr(1),
		}},
		products: []models.Product{
			{ID: 1, Name: "Widget", Code: "WID", TemplateID: 1},
		},
		prices: []models.SupplierPrice{
			{ID: 1, TemplateID: 1, PartnerID: 2, Delay: 5, MinQty: 10, Price: 2.5, Sequence: 1},
		},
		calendars: []models.Calendar{{ID: 1, Name: "Weekdays", Timezone: "UTC"}},
		attendances: []models.CalendarAttendance{
			{ID: 1, CalendarID: 1, DayOfWeek: intPtr(0), HourFrom: f64Ptr(8), HourTo: f64Ptr(16), DayPeriod: "morning"},
		},
		workcenters: []models.Workcenter{
			{ID: 1, Name: "Assembly", Capacity: 1, Efficiency: 100},
		},
		skills: []models.Skill{{ID: 1, Name: "Welding"}},
		wcSkills: []models.WorkcenterSkill{
			{ID: 1, WorkcenterID: 1, SkillID: 1, Priority: 1, Skill: models.Skill{ID: 1, Name: "Welding"}},
		},
		salesLines: []models.SalesOrderLine{
			{
				ID: 7, OrderID: 1, ProductID: uintPtr(1), Quantity: 5, UomID: uintPtr(1),
				Order: models.SalesOrder{
					ID: 1, Name: "SO1", State: "draft", PartnerID: uintPtr(1),
					OrderDate: due, WarehouseID: uintPtr(1), PickingPolicy: "direct",
				},
			},
			{
				ID: 8, OrderID: 2, ProductID: uintPtr(1), Quantity: 10, UomID: uintPtr(1),
				Order: models.SalesOrder{
					ID: 2, Name: "SO2", State: "sale", PartnerID: uintPtr(1),
					OrderDate: due, WarehouseID: uintPtr(1), PickingPolicy: "one",
				},
				Moves: []models.StockMove{{
					ID: 100, State: "confirmed", ProductID: 1, Date: due,
					Quantity: 3, UomQty: 10, UomID: uintPtr(1),
					ProcureMethod: "make_to_order", SalesLineID: uintPtr(8),
				}},
			},
			{
				ID: 9, OrderID: 3, ProductID: uintPtr(1), Quantity: 4, UomID: uintPtr(1),
				Order: models.SalesOrder{
					ID: 3, Name: "SO3", State: "done", PartnerID: uintPtr(1),
					OrderDate: due, WarehouseID: uintPtr(1), PickingPolicy: "one",
				},
			},
		},
		openMoves: []models.StockMove{{
			ID: 100, State: "confirmed", ProductID: 1, Date: due,
			Quantity: 3, UomQty: 10, UomID: uintPtr(1),
			ProcureMethod: "make_to_order", SalesLineID: uintPtr(8),
		}},
		purchaseLines: []models.PurchaseOrderLine{{
			ID: 21, OrderID: 1, ProductID: uintPtr(1), Quantity: 10, QtyReceived: 4,
			UomID: uintPtr(1), DatePlanned: due,
			Order: models.PurchaseOrder{
				ID: 1, Name: "PO1", State: "purchase", PartnerID: 2, OrderDate: startDate,
			},
		}},
		mos: []models.ManufacturingOrder{{
			ID: 40, Name: "MO-40", State: "confirmed", ProductID: 1,
			Quantity: 2, UomID: uintPtr(1), DateStart: timePtr(startDate),
			LocationDestID: uintPtr(1),
			WorkOrders: []models.WorkOrder{
				{
					ID: 51, DisplayName: "Cutting", ManufacturingID: 40, State: "ready",
					WorkcenterID: uintPtr(1), DurationExpected: 120,
				},
				{
					ID: 52, DisplayName: "Assembly step", ManufacturingID: 40, State: "progress",
					WorkcenterID: uintPtr(1), DurationExpected: 60, DurationDone: 30,
				},
			},
		}, {
			ID: 41, Name: "MO-41", State: "confirmed", ProductID: 1,
			Quantity: 3, UomID: uintPtr(1), DatePlannedStart: timePtr(startDate),
			LocationDestID: uintPtr(1),
		}},
		orderpoints: []models.Orderpoint{
			{ID: 1, ProductID: 1, WarehouseID: 1, MinQty: 10, MaxQty: 50, UomID: uintPtr(1)},
		},
		quants: []models.StockQuant{
			{ID: 1, ProductID: 1, LocationID: 1, Quantity: 8, Reserved: 2},
		},
	}
}

func runExport(t *testing.T, st store.Reader, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	err := New(st, zerolog.Nop()).Run(context.Background(), &buf, opts)
	require.NoError(t, err)
	return buf.String()
}

func TestExportConnectionTest(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeConnectionTest})
	assert.Contains(t, out, `source="erp_0"`)
	assert.Contains(t, out, "connection ok")
	assert.NotContains(t, out, "<demands>")
}

func TestExportSectionOrder(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	markers := []string{
		"<!-- calendar -->",
		"<!-- warehouses -->",
		"<!-- customers -->",
		"<!-- suppliers -->",
		"<!-- skills -->",
		"<!-- workcenters -->",
		"<!-- categories -->",
		"<!-- products -->",
		"<!-- sales order lines -->",
		"<!-- open purchase orders -->",
		"<!-- manufacturing orders in progress -->",
		"<!-- order points -->",
		"<!-- inventory -->",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, m)
		assert.Greater(t, idx, last, "%s out of order", m)
		last = idx
	}
}

func TestExportInfrequentModeSkipsMasterData(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeInfrequent})
	assert.Contains(t, out, `source="erp_2"`)
	assert.Contains(t, out, "<!-- sales order lines -->")
	assert.NotContains(t, out, "<!-- workcenters -->")
	assert.NotContains(t, out, "<!-- open purchase orders -->")
}

func TestExportUsersProperty(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})
	assert.Contains(t, out, `<stringproperty name="users"`)
	assert.Contains(t, out, "&quot;planner&quot;")
	assert.NotContains(t, out, "clerk")
}

func TestExportMasterData(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	// The warehouse id rides in the subcategory and the company
	// calendar is referenced as the working-hours calendar.
	assert.Contains(t, out, `<location name="WH" description="Main Warehouse" subcategory="1"><available name="Weekdays 1"/></location>`)
	assert.Contains(t, out, `<customer name="Customer Inc 1"/>`)
	assert.Contains(t, out, `<supplier name="Supplier LLC 2"/>`)
	assert.Contains(t, out, `<skill name="Welding"/>`)
	assert.Contains(t, out, `<resource name="Assembly"`)
	assert.Contains(t, out, `<location name="WH"/>`)

	// Item with round-trip subcategory "uom,product" and the merged
	// supplier price book.
	assert.Contains(t, out, `<item name="WID"`)
	assert.Contains(t, out, `subcategory="1,1"`)
	assert.Contains(t, out, `<itemsupplier leadtime="P5D" priority="1" batchwindow="P0D" size_minimum="10.000000" cost="2.500000">`)
}

func TestExportDemands(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	// Quotation: full quantity, status quote.
	assert.Contains(t, out, `<demand name="SO1 7" batch="SO1" quantity="5"`)
	assert.Contains(t, out, `status="quote"`)

	// Confirmed order with one open move: 10 ordered minus 3 reserved,
	// shipped all at once so the minimum shipment equals the net.
	assert.Contains(t, out, `<demand name="SO2 8" batch="SO2" quantity="7"`)
	assert.Contains(t, out, `minshipment="7" status="open"`)
	assert.Contains(t, out, `policy="alltogether"`)

	// Ship-complete orders keep their minimum shipment even once closed.
	assert.Contains(t, out, `<demand name="SO3 9" batch="SO3" quantity="4"`)
	assert.Contains(t, out, `minshipment="4" status="closed"`)
}

func TestExportPurchaseOrders(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	// 10 ordered, 4 received: 6 still inbound.
	assert.Contains(t, out, `<operationplan reference="PO1 - 21" ordertype="PO"`)
	assert.Contains(t, out, `quantity="6.000000" status="confirmed"`)
	assert.Contains(t, out, `<supplier name="Supplier LLC 2"/>`)
}

func TestExportManufacturingOrders(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	assert.Contains(t, out, `<operationplan type="MO" reference="MO-40" batch="MO-40"`)
	assert.Contains(t, out, `quantity="2" status="approved"`)

	// An order that has not started yet exports its scheduled start.
	assert.Contains(t, out, `<operationplan type="MO" reference="MO-41" batch="MO-41" start="2025-03-01T08:00:00" quantity="3"`)

	// One suboperation per work order at priorities 10, 20.
	assert.Contains(t, out, `<operation name="Cutting - 51" priority="10"`)
	assert.Contains(t, out, `<operation name="Assembly step - 52" priority="20"`)
	// Half of the second step is already done.
	assert.Contains(t, out, `duration="P0DT0H30M0S"`)

	// Per-step operationplans come last step first; the running step
	// exports as confirmed, the pending one as approved.
	idxSecond := strings.Index(out, `<operationplan type="MO" reference="Assembly step"`)
	idxFirst := strings.Index(out, `<operationplan type="MO" reference="Cutting"`)
	require.GreaterOrEqual(t, idxSecond, 0)
	require.GreaterOrEqual(t, idxFirst, 0)
	assert.Less(t, idxSecond, idxFirst)
	assert.Contains(t, out[idxSecond:idxFirst], `status="confirmed"`)
	assert.Contains(t, out, `<owner reference="MO-40"/>`)
}

func TestExportOrderpoints(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	assert.Contains(t, out, `<calendar name="SS for WID @ WH" default="0">`)
	assert.Contains(t, out, `<calendar name="ROQ for WID @ WH" default="0">`)
	assert.Contains(t, out, `value="10" days="127" priority="998"`)
	assert.Contains(t, out, `value="40" days="127" priority="998"`)
}

func TestExportInventoryBuffers(t *testing.T) {
	out := runExport(t, newFixture(), Options{Company: "Acme", Mode: ModeFull})

	// 8 on hand minus 2 reserved.
	assert.Contains(t, out, `<buffer name="WID @ WH" onhand="6.000000">`)
}

func TestExportInventoryWithExpiry(t *testing.T) {
	f := newFixture()
	f.companies[0].TrackExpiry = true
	exp := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	f.quants = []models.StockQuant{
		{ID: 1, ProductID: 1, LocationID: 1, Quantity: 4, LotName: "LOT-A", ExpirationDate: &exp},
	}
	out := runExport(t, f, Options{Company: "Acme", Mode: ModeFull})

	assert.Contains(t, out, `reference="STCK WID @ WH @ LOT-A"`)
	assert.Contains(t, out, `expiry="2025-09-01T00:00:00"`)
	assert.Contains(t, out, `ordertype="STCK"`)
}
