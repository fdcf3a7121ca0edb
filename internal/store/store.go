// Package store abstracts access to the transactional ERP database.
// The export translators depend only on Reader; the import pipeline
// additionally needs Writer. Two implementations exist: Gorm (direct,
// same transaction) and Remote (paged HTTP reads, export only).
package store

import (
	"context"
	"time"

	"example.com/planbridge/internal/models"
)

// PlannerOrigin marks records created by the import pipeline so a later
// full refresh can find and cancel its own draft proposals.
const PlannerOrigin = "planner"

// Reader is the read surface consumed by the export pipeline. All list
// methods return full snapshots; filtering beyond what a method name
// states happens in the translators.
type Reader interface {
	CompanyByName(ctx context.Context, name string) (*models.Company, error)
	UserByLogin(ctx context.Context, login string) (*models.User, error)
	Users(ctx context.Context) ([]models.User, error)

	// UnitsOfMeasure returns active and inactive units. Historical
	// records may still reference archived units.
	UnitsOfMeasure(ctx context.Context) ([]models.UnitOfMeasure, error)

	Warehouses(ctx context.Context) ([]models.Warehouse, error)
	InternalLocations(ctx context.Context) ([]models.StockLocation, error)
	Partners(ctx context.Context) ([]models.Partner, error)
	// PartnerByID also returns archived partners. Open orders can
	// still point at a supplier that was archived since.
	PartnerByID(ctx context.Context, id uint) (*models.Partner, error)
	Categories(ctx context.Context) ([]models.ProductCategory, error)
	Templates(ctx context.Context) ([]models.ProductTemplate, error)
	Products(ctx context.Context) ([]models.Product, error)
	SupplierPrices(ctx context.Context) ([]models.SupplierPrice, error)

	Calendars(ctx context.Context) ([]models.Calendar, error)
	Attendances(ctx context.Context) ([]models.CalendarAttendance, error)
	Leaves(ctx context.Context) ([]models.CalendarLeave, error)

	Workcenters(ctx context.Context) ([]models.Workcenter, error)
	Skills(ctx context.Context) ([]models.Skill, error)
	WorkcenterSkills(ctx context.Context) ([]models.WorkcenterSkill, error)

	RoutingSteps(ctx context.Context) ([]models.RoutingStep, error)
	SecondaryWorkcenters(ctx context.Context) ([]models.SecondaryWorkcenter, error)
	BOMs(ctx context.Context) ([]models.BOM, error)
	BOMLines(ctx context.Context) ([]models.BOMLine, error)

	// SalesOrderLines returns lines of quotations and confirmed orders
	// touched since the given time, with order header and shipment
	// moves preloaded.
	SalesOrderLines(ctx context.Context, since time.Time) ([]models.SalesOrderLine, error)
	// OpenStockMoves returns every move still waiting, confirmed or
	// (partially) assigned. Reservation netting walks their
	// predecessor chains.
	OpenStockMoves(ctx context.Context) ([]models.StockMove, error)
	// OpenPurchaseLines returns lines of non-draft, non-cancelled
	// purchase orders that are not fully received.
	OpenPurchaseLines(ctx context.Context) ([]models.PurchaseOrderLine, error)
	// ActiveManufacturingOrders returns confirmed or in-progress
	// production orders with work orders and raw moves preloaded.
	ActiveManufacturingOrders(ctx context.Context) ([]models.ManufacturingOrder, error)

	Orderpoints(ctx context.Context) ([]models.Orderpoint, error)
	OnhandQuants(ctx context.Context) ([]models.StockQuant, error)
	OperationTypes(ctx context.Context) ([]models.OperationType, error)
}

// Writer is the mutation surface consumed by the import pipeline.
type Writer interface {
	// CancelDraftPurchaseOrders cancels draft purchase orders that were
	// created by an earlier planning import. Returns the count removed.
	CancelDraftPurchaseOrders(ctx context.Context, companyID uint) (int, error)
	CancelDraftManufacturingOrders(ctx context.Context, companyID uint) (int, error)

	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	CreatePurchaseLine(ctx context.Context, line *models.PurchaseOrderLine) error
	UpdatePurchaseLine(ctx context.Context, line *models.PurchaseOrderLine) error
	UpdatePurchaseOrderDates(ctx context.Context, id uint, datePlanned, orderDate time.Time) error
	PurchaseLineByID(ctx context.Context, id uint) (*models.PurchaseOrderLine, error)

	CreateTransfer(ctx context.Context, t *models.Transfer) error
	CreateTransferMove(ctx context.Context, m *models.StockMove) error
	UpdateTransferMove(ctx context.Context, m *models.StockMove) error

	FindManufacturingOrderByName(ctx context.Context, name string) (*models.ManufacturingOrder, error)
	CreateManufacturingOrder(ctx context.Context, mo *models.ManufacturingOrder) error
	UpdateManufacturingOrder(ctx context.Context, mo *models.ManufacturingOrder) error
	// ChangeManufacturingQty is the dedicated quantity-change operation.
	// It adjusts the order and rescales its raw moves and work orders.
	ChangeManufacturingQty(ctx context.Context, id uint, qty float64) error
	// PendingWorkOrders returns the non-done work orders of a
	// manufacturing order with routing steps and secondaries preloaded.
	PendingWorkOrders(ctx context.Context, manufacturingID uint) ([]models.WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, wo *models.WorkOrder) error
	ReplaceWorkOrderSecondaries(ctx context.Context, workOrderID uint, secs []models.WorkOrderSecondaryAssignment) error

	ProductByID(ctx context.Context, id uint) (*models.Product, error)
	// FindSupplier looks up a supplier by name, falling back to
	// archived records so old price books still resolve.
	FindSupplier(ctx context.Context, name string) (*models.Partner, error)
	FindWarehouseByName(ctx context.Context, name string) (*models.Warehouse, error)
	// MainInternalLocation returns the warehouse's principal stock location.
	MainInternalLocation(ctx context.Context, warehouseID uint) (*models.StockLocation, error)
	FindOperationType(ctx context.Context, code string, warehouseID uint) (*models.OperationType, error)
	// WorkcenterByID resolves a workcenter with its pool owner loaded.
	WorkcenterByID(ctx context.Context, id uint) (*models.Workcenter, error)
	SupplierPricesForTemplate(ctx context.Context, templateID uint) ([]models.SupplierPrice, error)
}

// Store is the full adapter surface.
type Store interface {
	Reader
	Writer
}
