package store

import (
	"context"
	"time"

	"example.com/planbridge/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Gorm is the in-process adapter backed by the ERP database itself.
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a database-backed store.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) CompanyByName(ctx context.Context, name string) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&c).Error; err != nil {
		return nil, errors.Wrapf(err, "company %q not found", name)
	}
	return &c, nil
}

func (s *Gorm) UserByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("login = ?", login).First(&u).Error; err != nil {
		return nil, errors.Wrapf(err, "user %q not found", login)
	}
	return &u, nil
}

func (s *Gorm) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	return users, nil
}

func (s *Gorm) UnitsOfMeasure(ctx context.Context) ([]models.UnitOfMeasure, error) {
	var uoms []models.UnitOfMeasure
	if err := s.db.WithContext(ctx).Find(&uoms).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list units of measure")
	}
	return uoms, nil
}

func (s *Gorm) Warehouses(ctx context.Context) ([]models.Warehouse, error) {
	var whs []models.Warehouse
	if err := s.db.WithContext(ctx).Order("id").Find(&whs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list warehouses")
	}
	return whs, nil
}

func (s *Gorm) InternalLocations(ctx context.Context) ([]models.StockLocation, error) {
	var locs []models.StockLocation
	if err := s.db.WithContext(ctx).Where("usage = ?", "internal").Find(&locs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list internal locations")
	}
	return locs, nil
}

func (s *Gorm) Partners(ctx context.Context) ([]models.Partner, error) {
	var partners []models.Partner
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&partners).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list partners")
	}
	return partners, nil
}

func (s *Gorm) PartnerByID(ctx context.Context, id uint) (*models.Partner, error) {
	var p models.Partner
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, errors.Wrapf(err, "partner %d not found", id)
	}
	return &p, nil
}

func (s *Gorm) Categories(ctx context.Context) ([]models.ProductCategory, error) {
	var cats []models.ProductCategory
	if err := s.db.WithContext(ctx).Order("id").Find(&cats).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list product categories")
	}
	return cats, nil
}

func (s *Gorm) Templates(ctx context.Context) ([]models.ProductTemplate, error) {
	var tmpls []models.ProductTemplate
	if err := s.db.WithContext(ctx).Where("type NOT IN ?", []string{"service", "consu"}).Find(&tmpls).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list product templates")
	}
	return tmpls, nil
}

func (s *Gorm) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}
	return products, nil
}

func (s *Gorm) SupplierPrices(ctx context.Context) ([]models.SupplierPrice, error) {
	var prices []models.SupplierPrice
	if err := s.db.WithContext(ctx).Order("sequence, id").Find(&prices).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list supplier prices")
	}
	return prices, nil
}

func (s *Gorm) Calendars(ctx context.Context) ([]models.Calendar, error) {
	var cals []models.Calendar
	if err := s.db.WithContext(ctx).Order("id").Find(&cals).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list calendars")
	}
	return cals, nil
}

func (s *Gorm) Attendances(ctx context.Context) ([]models.CalendarAttendance, error) {
	var rules []models.CalendarAttendance
	if err := s.db.WithContext(ctx).Where("display = ?", false).Order("id").Find(&rules).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list attendance rules")
	}
	return rules, nil
}

func (s *Gorm) Leaves(ctx context.Context) ([]models.CalendarLeave, error) {
	var leaves []models.CalendarLeave
	if err := s.db.WithContext(ctx).Where("time_type = ?", "leave").Order("id").Find(&leaves).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list leave rules")
	}
	return leaves, nil
}

func (s *Gorm) Workcenters(ctx context.Context) ([]models.Workcenter, error) {
	var wcs []models.Workcenter
	if err := s.db.WithContext(ctx).Order("id").Find(&wcs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list workcenters")
	}
	return wcs, nil
}

func (s *Gorm) Skills(ctx context.Context) ([]models.Skill, error) {
	var skills []models.Skill
	if err := s.db.WithContext(ctx).Order("id").Find(&skills).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list skills")
	}
	return skills, nil
}

func (s *Gorm) WorkcenterSkills(ctx context.Context) ([]models.WorkcenterSkill, error) {
	var wskills []models.WorkcenterSkill
	if err := s.db.WithContext(ctx).Preload("Skill").Order("id").Find(&wskills).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list workcenter skills")
	}
	return wskills, nil
}

func (s *Gorm) RoutingSteps(ctx context.Context) ([]models.RoutingStep, error) {
	var steps []models.RoutingStep
	err := s.db.WithContext(ctx).
		Preload("Skill").
		Preload("Secondaries").
		Preload("Secondaries.Skill").
		Order("sequence, id").
		Find(&steps).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list routing steps")
	}
	return steps, nil
}

func (s *Gorm) SecondaryWorkcenters(ctx context.Context) ([]models.SecondaryWorkcenter, error) {
	var secs []models.SecondaryWorkcenter
	if err := s.db.WithContext(ctx).Preload("Skill").Order("id").Find(&secs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list secondary workcenters")
	}
	return secs, nil
}

func (s *Gorm) BOMs(ctx context.Context) ([]models.BOM, error) {
	var boms []models.BOM
	if err := s.db.WithContext(ctx).Preload("Lines").Preload("Byproducts").Order("sequence, id").Find(&boms).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list bills of materials")
	}
	return boms, nil
}

func (s *Gorm) BOMLines(ctx context.Context) ([]models.BOMLine, error) {
	var lines []models.BOMLine
	if err := s.db.WithContext(ctx).Order("id").Find(&lines).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list bill of material lines")
	}
	return lines, nil
}

func (s *Gorm) SalesOrderLines(ctx context.Context, since time.Time) ([]models.SalesOrderLine, error) {
	var lines []models.SalesOrderLine
	err := s.db.WithContext(ctx).
		Preload("Order").
		Preload("Moves").
		Joins("JOIN sales_orders ON sales_orders.id = sales_order_lines.order_id").
		Where("sales_orders.state IN ?", []string{"draft", "sent", "sale", "done"}).
		Where("sales_order_lines.updated_at >= ?", since).
		Order("sales_order_lines.id").
		Find(&lines).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sales order lines")
	}
	return lines, nil
}

func (s *Gorm) OpenStockMoves(ctx context.Context) ([]models.StockMove, error) {
	var moves []models.StockMove
	err := s.db.WithContext(ctx).
		Where("state IN ?", []string{"waiting", "partially_available", "assigned", "confirmed"}).
		Find(&moves).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open stock moves")
	}
	return moves, nil
}

func (s *Gorm) OpenPurchaseLines(ctx context.Context) ([]models.PurchaseOrderLine, error) {
	var lines []models.PurchaseOrderLine
	err := s.db.WithContext(ctx).
		Preload("Order").
		Preload("Moves").
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_lines.order_id").
		Where("purchase_orders.state IN ?", []string{"purchase", "done"}).
		Where("purchase_orders.receipt_status != ?", "full").
		Order("purchase_order_lines.id").
		Find(&lines).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list open purchase lines")
	}
	return lines, nil
}

func (s *Gorm) ActiveManufacturingOrders(ctx context.Context) ([]models.ManufacturingOrder, error) {
	var mos []models.ManufacturingOrder
	err := s.db.WithContext(ctx).
		Preload("WorkOrders", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("WorkOrders.RoutingStep").
		Preload("WorkOrders.RoutingStep.Secondaries").
		Preload("WorkOrders.TimeLogs").
		Preload("WorkOrders.Secondaries").
		Preload("RawMoves").
		Where("state IN ?", []string{"confirmed", "progress", "to_close"}).
		Order("id").
		Find(&mos).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list manufacturing orders")
	}
	return mos, nil
}

func (s *Gorm) Orderpoints(ctx context.Context) ([]models.Orderpoint, error) {
	var ops []models.Orderpoint
	if err := s.db.WithContext(ctx).Order("id").Find(&ops).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list reordering rules")
	}
	return ops, nil
}

func (s *Gorm) OnhandQuants(ctx context.Context) ([]models.StockQuant, error) {
	var quants []models.StockQuant
	err := s.db.WithContext(ctx).
		Joins("JOIN stock_locations ON stock_locations.id = stock_quants.location_id").
		Where("stock_locations.usage = ?", "internal").
		Where("stock_locations.scrap = ? AND stock_locations.return = ?", false, false).
		Order("stock_quants.id").
		Find(&quants).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stock quants")
	}
	return quants, nil
}

func (s *Gorm) OperationTypes(ctx context.Context) ([]models.OperationType, error) {
	var types []models.OperationType
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&types).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list operation types")
	}
	return types, nil
}

func (s *Gorm) CancelDraftPurchaseOrders(ctx context.Context, companyID uint) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Where("state = ? AND origin = ?", "draft", PlannerOrigin).
		Where("company_id = ? OR company_id IS NULL", companyID).
		Update("state", "cancel")
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to cancel draft purchase orders")
	}
	return int(res.RowsAffected), nil
}

func (s *Gorm) CancelDraftManufacturingOrders(ctx context.Context, companyID uint) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.ManufacturingOrder{}).
		Where("state = ? AND origin = ?", "draft", PlannerOrigin).
		Where("company_id = ? OR company_id IS NULL", companyID).
		Update("state", "cancel")
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to cancel draft manufacturing orders")
	}
	return int(res.RowsAffected), nil
}

func (s *Gorm) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	if err := s.db.WithContext(ctx).Create(po).Error; err != nil {
		return errors.Wrap(err, "failed to create purchase order")
	}
	return nil
}

func (s *Gorm) CreatePurchaseLine(ctx context.Context, line *models.PurchaseOrderLine) error {
	if err := s.db.WithContext(ctx).Create(line).Error; err != nil {
		return errors.Wrap(err, "failed to create purchase order line")
	}
	return nil
}

func (s *Gorm) UpdatePurchaseLine(ctx context.Context, line *models.PurchaseOrderLine) error {
	if err := s.db.WithContext(ctx).Save(line).Error; err != nil {
		return errors.Wrapf(err, "failed to update purchase line %d", line.ID)
	}
	return nil
}

func (s *Gorm) UpdatePurchaseOrderDates(ctx context.Context, id uint, datePlanned, orderDate time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"date_planned": datePlanned,
			"order_date":   orderDate,
		}).Error
	if err != nil {
		return errors.Wrapf(err, "failed to update purchase order %d dates", id)
	}
	return nil
}

func (s *Gorm) PurchaseLineByID(ctx context.Context, id uint) (*models.PurchaseOrderLine, error) {
	var line models.PurchaseOrderLine
	if err := s.db.WithContext(ctx).Preload("Order").First(&line, id).Error; err != nil {
		return nil, errors.Wrapf(err, "purchase line %d not found", id)
	}
	return &line, nil
}

func (s *Gorm) CreateTransfer(ctx context.Context, t *models.Transfer) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return errors.Wrap(err, "failed to create transfer")
	}
	return nil
}

func (s *Gorm) CreateTransferMove(ctx context.Context, m *models.StockMove) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "failed to create transfer move")
	}
	return nil
}

func (s *Gorm) UpdateTransferMove(ctx context.Context, m *models.StockMove) error {
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return errors.Wrapf(err, "failed to update transfer move %d", m.ID)
	}
	return nil
}

func (s *Gorm) FindManufacturingOrderByName(ctx context.Context, name string) (*models.ManufacturingOrder, error) {
	var mo models.ManufacturingOrder
	err := s.db.WithContext(ctx).
		Preload("WorkOrders").
		Preload("RawMoves").
		Where("name = ?", name).
		First(&mo).Error
	if err != nil {
		return nil, errors.Wrapf(err, "manufacturing order %q not found", name)
	}
	return &mo, nil
}

func (s *Gorm) CreateManufacturingOrder(ctx context.Context, mo *models.ManufacturingOrder) error {
	if err := s.db.WithContext(ctx).Create(mo).Error; err != nil {
		return errors.Wrap(err, "failed to create manufacturing order")
	}
	return nil
}

func (s *Gorm) UpdateManufacturingOrder(ctx context.Context, mo *models.ManufacturingOrder) error {
	if err := s.db.WithContext(ctx).Save(mo).Error; err != nil {
		return errors.Wrapf(err, "failed to update manufacturing order %d", mo.ID)
	}
	return nil
}

func (s *Gorm) ChangeManufacturingQty(ctx context.Context, id uint, qty float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mo models.ManufacturingOrder
		if err := tx.First(&mo, id).Error; err != nil {
			return errors.Wrapf(err, "manufacturing order %d not found", id)
		}
		if mo.Quantity == qty {
			return nil
		}
		ratio := 0.0
		if mo.Quantity != 0 {
			ratio = qty / mo.Quantity
		}
		if err := tx.Model(&mo).Update("quantity", qty).Error; err != nil {
			return errors.Wrap(err, "failed to change quantity")
		}
		// Rescale component demand and expected workload with the order.
		err := tx.Model(&models.StockMove{}).
			Where("manufacturing_id = ? AND state NOT IN ?", id, []string{"done", "cancel"}).
			Update("uom_qty", gorm.Expr("uom_qty * ?", ratio)).Error
		if err != nil {
			return errors.Wrap(err, "failed to rescale raw moves")
		}
		err = tx.Model(&models.WorkOrder{}).
			Where("manufacturing_id = ? AND state NOT IN ?", id, []string{"done", "cancel"}).
			Update("duration_expected", gorm.Expr("duration_expected * ?", ratio)).Error
		if err != nil {
			return errors.Wrap(err, "failed to rescale work orders")
		}
		return nil
	})
}

func (s *Gorm) PendingWorkOrders(ctx context.Context, manufacturingID uint) ([]models.WorkOrder, error) {
	var wos []models.WorkOrder
	err := s.db.WithContext(ctx).
		Preload("RoutingStep").
		Preload("RoutingStep.Secondaries").
		Preload("Secondaries").
		Where("manufacturing_id = ? AND state NOT IN ?", manufacturingID, []string{"done", "cancel"}).
		Order("id").
		Find(&wos).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list work orders of order %d", manufacturingID)
	}
	return wos, nil
}

func (s *Gorm) UpdateWorkOrder(ctx context.Context, wo *models.WorkOrder) error {
	if err := s.db.WithContext(ctx).Save(wo).Error; err != nil {
		return errors.Wrapf(err, "failed to update work order %d", wo.ID)
	}
	return nil
}

func (s *Gorm) ReplaceWorkOrderSecondaries(ctx context.Context, workOrderID uint, secs []models.WorkOrderSecondaryAssignment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("work_order_id = ?", workOrderID).
			Delete(&models.WorkOrderSecondaryAssignment{}).Error
		if err != nil {
			return errors.Wrap(err, "failed to clear secondary assignments")
		}
		for i := range secs {
			secs[i].WorkOrderID = workOrderID
			if err := tx.Create(&secs[i]).Error; err != nil {
				return errors.Wrap(err, "failed to create secondary assignment")
			}
		}
		return nil
	})
}

func (s *Gorm) ProductByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Preload("Template").First(&p, id).Error; err != nil {
		return nil, errors.Wrapf(err, "product %d not found", id)
	}
	return &p, nil
}

func (s *Gorm) FindSupplier(ctx context.Context, name string) (*models.Partner, error) {
	var p models.Partner
	err := s.db.WithContext(ctx).
		Where("name = ? AND active = ?", name, true).
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(err, "failed to look up supplier %q", name)
	}
	// Archived suppliers may still carry open price books.
	err = s.db.WithContext(ctx).
		Where("name = ? AND active = ?", name, false).
		First(&p).Error
	if err != nil {
		return nil, errors.Wrapf(err, "supplier %q not found", name)
	}
	return &p, nil
}

func (s *Gorm) FindWarehouseByName(ctx context.Context, name string) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := s.db.WithContext(ctx).
		Where("name = ? OR code = ?", name, name).
		First(&wh).Error
	if err != nil {
		return nil, errors.Wrapf(err, "warehouse %q not found", name)
	}
	return &wh, nil
}

func (s *Gorm) MainInternalLocation(ctx context.Context, warehouseID uint) (*models.StockLocation, error) {
	var loc models.StockLocation
	err := s.db.WithContext(ctx).
		Where("warehouse_id = ? AND usage = ? AND scrap = ? AND \"return\" = ?",
			warehouseID, "internal", false, false).
		Order("id").
		First(&loc).Error
	if err != nil {
		return nil, errors.Wrapf(err, "no internal location in warehouse %d", warehouseID)
	}
	return &loc, nil
}

func (s *Gorm) FindOperationType(ctx context.Context, code string, warehouseID uint) (*models.OperationType, error) {
	var t models.OperationType
	err := s.db.WithContext(ctx).
		Where("code = ? AND warehouse_id = ? AND active = ?", code, warehouseID, true).
		Order("id").
		First(&t).Error
	if err != nil {
		return nil, errors.Wrapf(err, "no %q operation type in warehouse %d", code, warehouseID)
	}
	return &t, nil
}

func (s *Gorm) WorkcenterByID(ctx context.Context, id uint) (*models.Workcenter, error) {
	var wc models.Workcenter
	if err := s.db.WithContext(ctx).Preload("Owner").First(&wc, id).Error; err != nil {
		return nil, errors.Wrapf(err, "workcenter %d not found", id)
	}
	return &wc, nil
}

func (s *Gorm) SupplierPricesForTemplate(ctx context.Context, templateID uint) ([]models.SupplierPrice, error) {
	var prices []models.SupplierPrice
	err := s.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("sequence, id").
		Find(&prices).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list supplier prices for template %d", templateID)
	}
	return prices, nil
}
