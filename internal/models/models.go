package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Company scopes all planning data and carries the connector settings
// for one legal entity.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`

	// Lead times, in days.
	SecurityLead      float64 `json:"security_lead"`
	PurchaseLead      float64 `json:"purchase_lead"`
	ManufacturingLead float64 `json:"manufacturing_lead"`

	CalendarID               *uint `json:"calendar_id"`
	ManufacturingWarehouseID *uint `json:"manufacturing_warehouse_id"`

	// RespectReservations nets reserved stock from exported quantities.
	RespectReservations bool `gorm:"default:true" json:"respect_reservations"`
	// TrackWorkOrders keeps individual routing steps visible to the planner.
	TrackWorkOrders bool `json:"track_work_orders"`
	// TrackExpiry switches the on-hand export to lot-level stock orders.
	TrackExpiry bool `json:"track_expiry"`

	// WebtokenKey signs the HS256 web tokens accepted by the endpoint.
	WebtokenKey        string `gorm:"size:128" json:"-"`
	DiscloseStackTrace bool   `json:"disclose_stack_trace"`

	Calendar               *Calendar  `gorm:"foreignKey:CalendarID" json:"-"`
	ManufacturingWarehouse *Warehouse `gorm:"foreignKey:ManufacturingWarehouseID" json:"-"`
}

// User is an account in the transactional store. The endpoint
// authenticates against these records.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name         string    `gorm:"not null" json:"name"`
	Login        string    `gorm:"not null;uniqueIndex" json:"login"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Timezone     string    `json:"timezone"`
	PlannerUser  bool      `json:"planner_user"`
}

// UnitOfMeasure converts quantities within one measurement category.
// Factor is multiplicative relative to the category's reference unit.
type UnitOfMeasure struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     string  `gorm:"not null" json:"name"`
	Factor   float64 `gorm:"not null;default:1" json:"factor"`
	Category uint    `gorm:"not null;index" json:"category"`
	Active   bool    `gorm:"default:true" json:"active"`
}

// Warehouse is a planning location. The code doubles as the name sent
// to the planner; the id is round-tripped in the location subcategory.
type Warehouse struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Code string `json:"code"`
}

// StockLocation is an internal storage location inside a warehouse.
type StockLocation struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Usage       string `gorm:"index" json:"usage"` // internal, customer, supplier...
	WarehouseID *uint  `gorm:"index" json:"warehouse_id"`
	Scrap       bool   `json:"scrap"`
	Return      bool   `json:"return"`
}

// Partner is a customer, supplier or contact. Contacts roll up to their
// parent company; stand-alone individuals are grouped separately.
type Partner struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	ParentID  *uint  `gorm:"index" json:"parent_id"`
	IsCompany bool   `json:"is_company"`
	Active    bool   `gorm:"default:true" json:"active"`
}

// ProductCategory forms the item ownership hierarchy.
type ProductCategory struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CompleteName string `gorm:"not null" json:"complete_name"`
	ParentID     *uint  `gorm:"index" json:"parent_id"`
}

// ProductTemplate carries the shared attributes of all variants of a product.
type ProductTemplate struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Type           string  `gorm:"index" json:"type"` // product, service, consu
	SaleOK         bool    `json:"sale_ok"`
	PurchaseOK     bool    `json:"purchase_ok"`
	ListPrice      float64 `json:"list_price"`
	StandardPrice  float64 `json:"standard_price"`
	UomID          *uint   `json:"uom_id"`
	CategoryID     *uint   `json:"category_id"`
	MakeToOrder    bool    `json:"make_to_order"`
	ExpirationDays float64 `json:"expiration_days"`
	// Delay is the default supplier lead time in days.
	Delay float64 `json:"delay"`

	Variants []Product `gorm:"foreignKey:TemplateID" json:"-"`
}

// Product is a sellable/storable item variant.
type Product struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	Name       string  `gorm:"not null" json:"name"`
	Code       string  `json:"code"`
	TemplateID uint    `gorm:"not null;index" json:"template_id"`
	Volume     float64 `json:"volume"`
	Weight     float64 `json:"weight"`
	PriceExtra float64 `json:"price_extra"`
	// AttributeValueIDs identifies the variant combination.
	AttributeValueIDs []int64 `gorm:"serializer:json" json:"attribute_value_ids"`

	Template ProductTemplate `gorm:"foreignKey:TemplateID" json:"-"`
}

// SupplierPrice is one price-book line linking a product template to a
// supplier. Multiple lines for the same (supplier, start date) are merged
// on export with a most-permissive-wins rule.
type SupplierPrice struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TemplateID     uint       `gorm:"not null;index" json:"template_id"`
	PartnerID      uint       `gorm:"not null;index" json:"partner_id"`
	Delay          float64    `json:"delay"` // lead time in days
	MinQty         float64    `json:"min_qty"`
	Price          float64    `json:"price"`
	BatchingWindow float64    `json:"batching_window"` // days
	Sequence       int        `json:"sequence"`
	DateStart      *time.Time `json:"date_start"`
	DateEnd        *time.Time `json:"date_end"`
	Subcontractor  bool       `json:"subcontractor"`
}

// Calendar groups working-time rules. The planner receives one calendar
// per record plus synthesized per-resource calendars for exceptions.
type Calendar struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Timezone string `json:"timezone"`
}

// CalendarAttendance is a weekly (or biweekly) working-time rule.
type CalendarAttendance struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CalendarID uint `gorm:"not null;index" json:"calendar_id"`
	// DayOfWeek uses Monday=0 .. Sunday=6. Nil means every day.
	DayOfWeek *int       `json:"day_of_week"`
	HourFrom  *float64   `json:"hour_from"` // fractional hours since midnight
	HourTo    *float64   `json:"hour_to"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	// WeekType set (0 or 1) marks an alternating biweekly rule.
	WeekType   *int   `json:"week_type"`
	ResourceID *uint  `gorm:"index" json:"resource_id"` // workcenter-specific exception
	DayPeriod  string `json:"day_period"`               // morning, afternoon, lunch
	Display    bool   `json:"display"`                  // section separator rows carry true
}

// CalendarLeave is a closing-time rule.
type CalendarLeave struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CalendarID uint      `gorm:"not null;index" json:"calendar_id"`
	DateFrom   time.Time `json:"date_from"`
	DateTo     time.Time `json:"date_to"`
	ResourceID *uint     `gorm:"index" json:"resource_id"`
	TimeType   string    `json:"time_type"` // leave, other
}

// Skill is a capability a workcenter can offer.
type Skill struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
}

// Workcenter is a capacity resource. OwnerID points to a pool resource;
// membership is resolved by owner equality, never by name.
type Workcenter struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	Name       string  `gorm:"not null" json:"name"`
	Capacity   float64 `gorm:"default:1" json:"capacity"`
	Efficiency float64 `gorm:"default:100" json:"efficiency"`
	OwnerID    *uint   `gorm:"index" json:"owner_id"`
	CalendarID *uint   `gorm:"index" json:"calendar_id"`
	Tool       bool    `json:"tool"`

	Owner *Workcenter `gorm:"foreignKey:OwnerID" json:"-"`
}

// WorkcenterSkill links a workcenter to a skill with a priority.
type WorkcenterSkill struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	WorkcenterID uint `gorm:"not null;index" json:"workcenter_id"`
	SkillID      uint `gorm:"not null;index" json:"skill_id"`
	Priority     int  `gorm:"default:1" json:"priority"`

	Skill Skill `gorm:"foreignKey:SkillID" json:"-"`
}

// RoutingStep is one capacity-consuming step of a bill of materials.
type RoutingStep struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	BOMID        *uint   `gorm:"index" json:"bom_id"`
	WorkcenterID *uint   `gorm:"index" json:"workcenter_id"`
	Sequence     int     `json:"sequence"`
	TimeCycle    float64 `json:"time_cycle"` // minutes per cycle
	SkillID      *uint   `json:"skill_id"`
	SearchMode   string  `gorm:"default:PRIORITY" json:"search_mode"`

	Skill       *Skill                `gorm:"foreignKey:SkillID" json:"-"`
	Secondaries []SecondaryWorkcenter `gorm:"foreignKey:RoutingStepID" json:"-"`
}

// SecondaryWorkcenter is an auxiliary resource required alongside the
// primary workcenter of a routing step.
type SecondaryWorkcenter struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	RoutingStepID uint    `gorm:"not null;index" json:"routing_step_id"`
	WorkcenterID  uint    `gorm:"not null;index" json:"workcenter_id"`
	SkillID       *uint   `json:"skill_id"`
	SearchMode    string  `gorm:"default:PRIORITY" json:"search_mode"`
	Priority      int     `gorm:"default:1" json:"priority"`
	Duration      float64 `json:"duration"` // minutes

	Skill *Skill `gorm:"foreignKey:SkillID" json:"-"`
}

// BOM is a bill of materials: the recipe producing one product template
// (or one specific variant).
type BOM struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	TemplateID    uint    `gorm:"not null;index" json:"template_id"`
	ProductID     *uint   `gorm:"index" json:"product_id"` // variant-specific BOM
	Quantity      float64 `gorm:"default:1" json:"quantity"`
	UomID         *uint   `json:"uom_id"`
	Type          string  `gorm:"default:normal" json:"type"` // normal, subcontract
	ProduceDelay  float64 `json:"produce_delay"`              // days
	DaysToPrepare float64 `json:"days_to_prepare"`
	Sequence      int     `json:"sequence"`
	Code          string  `json:"code"`

	Lines      []BOMLine      `gorm:"foreignKey:BOMID" json:"-"`
	Byproducts []BOMByproduct `gorm:"foreignKey:BOMID" json:"-"`
}

// BOMByproduct is a secondary output of a BOM. Fixed byproducts yield
// a constant quantity regardless of the produced amount.
type BOMByproduct struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	BOMID     uint    `gorm:"not null;index" json:"bom_id"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UomID     *uint   `json:"uom_id"`
	Type      string  `gorm:"default:variable" json:"type"` // fixed, variable
}

// BOMLine is one consumed component of a BOM, optionally tied to a
// routing step.
type BOMLine struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	BOMID         uint    `gorm:"not null;index" json:"bom_id"`
	ProductID     uint    `gorm:"not null;index" json:"product_id"`
	Quantity      float64 `json:"quantity"`
	UomID         *uint   `json:"uom_id"`
	RoutingStepID *uint   `gorm:"index" json:"routing_step_id"`
	// AttributeValueIDs restricts the line to matching variants.
	AttributeValueIDs []int64 `gorm:"serializer:json" json:"attribute_value_ids"`
}

// SalesOrder is a customer order header.
type SalesOrder struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	State          string     `gorm:"index" json:"state"` // draft, sent, sale, done, cancel
	PartnerID      *uint      `json:"partner_id"`
	CommitmentDate *time.Time `json:"commitment_date"`
	OrderDate      time.Time  `json:"order_date"`
	PickingPolicy  string     `json:"picking_policy"` // one, direct
	WarehouseID    *uint      `json:"warehouse_id"`
}

// SalesOrderLine is one demand line of a sales order.
type SalesOrderLine struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OrderID      uint      `gorm:"not null;index" json:"order_id"`
	ProductID    *uint     `gorm:"index" json:"product_id"`
	Quantity     float64   `json:"quantity"`
	QtyDelivered float64   `json:"qty_delivered"`
	UomID        *uint     `json:"uom_id"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`

	Order SalesOrder  `gorm:"foreignKey:OrderID" json:"-"`
	Moves []StockMove `gorm:"foreignKey:SalesLineID" json:"-"`
}

// StockMove is a planned or executed movement of goods. Shipments,
// receipts and manufacturing consumptions all materialize as moves.
type StockMove struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `json:"name"`
	State         string    `gorm:"index" json:"state"` // draft, waiting, confirmed, partially_available, assigned, done, cancel
	ProductID     uint      `gorm:"not null;index" json:"product_id"`
	Date          time.Time `json:"date"`
	Quantity      float64   `json:"quantity"` // reserved/done quantity
	UomQty        float64   `json:"uom_qty"`  // ordered quantity
	UomID         *uint     `json:"uom_id"`
	ProcureMethod string    `json:"procure_method"` // make_to_stock, make_to_order
	Origin        string    `gorm:"index" json:"origin"`

	SalesLineID    *uint `gorm:"index" json:"sales_line_id"`
	PurchaseLineID *uint `gorm:"index" json:"purchase_line_id"`
	// OrigIDs chains a move to its predecessors for reservation netting.
	OrigIDs        []int64 `gorm:"serializer:json" json:"orig_ids"`
	LocationDestID *uint   `json:"location_dest_id"`
	Subcontract    bool    `json:"subcontract"`
	// ProductionID is set on subcontracting moves feeding a manufacturing order.
	ProductionID       *uint `gorm:"index" json:"production_id"`
	ManufacturingID    *uint `gorm:"index" json:"manufacturing_id"` // raw-material moves of an MO
	WorkOrderID        *uint `gorm:"index" json:"work_order_id"`
	RoutingStepID      *uint `json:"routing_step_id"`
	TransferID         *uint `gorm:"index" json:"transfer_id"`
	LocationID         *uint `json:"location_id"`
	LinkedSalesOrderID *uint `json:"linked_sales_order_id"` // MTO chain terminus
}

// PurchaseOrder is a supplier order header.
type PurchaseOrder struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"not null" json:"name"`
	State         string     `gorm:"index" json:"state"` // draft, sent, purchase, done, cancel
	PartnerID     uint       `gorm:"index" json:"partner_id"`
	Origin        string     `gorm:"index" json:"origin"`
	ReceiptStatus string     `json:"receipt_status"` // pending, partial, full
	OrderDate     time.Time  `json:"order_date"`
	DatePlanned   *time.Time `json:"date_planned"`
	CompanyID     *uint      `json:"company_id"`
}

// PurchaseOrderLine is one supply line of a purchase order.
type PurchaseOrderLine struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	Name        string    `json:"name"`
	ProductID   *uint     `gorm:"index" json:"product_id"`
	Quantity    float64   `json:"quantity"`
	QtyReceived float64   `json:"qty_received"`
	UomID       *uint     `json:"uom_id"`
	DatePlanned time.Time `json:"date_planned"`
	PriceUnit   float64   `json:"price_unit"`

	Order PurchaseOrder `gorm:"foreignKey:OrderID" json:"-"`
	Moves []StockMove   `gorm:"foreignKey:PurchaseLineID" json:"-"`
}

// ManufacturingOrder is a production order, possibly broken down into
// work orders.
type ManufacturingOrder struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"not null;uniqueIndex" json:"name"`
	State            string     `gorm:"index" json:"state"` // draft, confirmed, progress, to_close, done, cancel
	ProductID        uint       `gorm:"index" json:"product_id"`
	Quantity         float64    `json:"quantity"`
	QtyProducing     float64    `json:"qty_producing"`
	UomID            *uint      `json:"uom_id"`
	DateStart        *time.Time `json:"date_start"`
	DatePlannedStart *time.Time `json:"date_planned_start"`
	DateFinished     *time.Time `json:"date_finished"`
	BOMID            *uint      `json:"bom_id"`
	LocationDestID   *uint      `json:"location_dest_id"`
	OperationTypeID  *uint      `json:"operation_type_id"`
	Origin           string     `gorm:"index" json:"origin"`
	CompanyID        *uint      `json:"company_id"`

	WorkOrders []WorkOrder `gorm:"foreignKey:ManufacturingID" json:"-"`
	RawMoves   []StockMove `gorm:"foreignKey:ManufacturingID" json:"-"`
}

// WorkOrder is one routing step instance of a manufacturing order.
type WorkOrder struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	DisplayName      string     `gorm:"not null" json:"display_name"`
	ManufacturingID  uint       `gorm:"not null;index" json:"manufacturing_id"`
	State            string     `gorm:"index" json:"state"` // pending, waiting, ready, progress, done, cancel
	RoutingStepID    *uint      `gorm:"index" json:"routing_step_id"`
	WorkcenterID     *uint      `gorm:"index" json:"workcenter_id"`
	DurationExpected float64    `json:"duration_expected"` // minutes
	DurationDone     float64    `json:"duration_done"`
	UserWorking      bool       `json:"user_working"`
	DateStart        *time.Time `json:"date_start"`
	DateFinished     *time.Time `json:"date_finished"`

	RoutingStep *RoutingStep                   `gorm:"foreignKey:RoutingStepID" json:"-"`
	TimeLogs    []WorkOrderTimeLog             `gorm:"foreignKey:WorkOrderID" json:"-"`
	Secondaries []WorkOrderSecondaryAssignment `gorm:"foreignKey:WorkOrderID" json:"-"`
}

// WorkOrderTimeLog records an operator working session on a work order.
type WorkOrderTimeLog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	WorkOrderID uint       `gorm:"not null;index" json:"work_order_id"`
	DateStart   *time.Time `json:"date_start"`
	DateEnd     *time.Time `json:"date_end"`
}

// WorkOrderSecondaryAssignment binds a secondary workcenter to a work order.
type WorkOrderSecondaryAssignment struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	WorkOrderID  uint    `gorm:"not null;index" json:"work_order_id"`
	WorkcenterID uint    `gorm:"not null;index" json:"workcenter_id"`
	Duration     float64 `json:"duration"` // minutes
}

// OperationType describes a flavor of stock operation (receipts,
// internal transfers, manufacturing) and its default locations.
type OperationType struct {
	ID                    uint   `gorm:"primaryKey" json:"id"`
	Name                  string `gorm:"not null" json:"name"`
	Code                  string `gorm:"index" json:"code"` // incoming, outgoing, internal, mrp_operation
	SequenceCode          string `json:"sequence_code"`
	DefaultLocationSrcID  *uint  `json:"default_location_src_id"`
	DefaultLocationDestID *uint  `json:"default_location_dest_id"`
	WarehouseID           *uint  `gorm:"index" json:"warehouse_id"`
	CompanyID             *uint  `json:"company_id"`
	Active                bool   `gorm:"default:true" json:"active"`
}

// Transfer is an internal stock transfer header created by the import
// pipeline for distribution orders.
type Transfer struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `json:"name"`
	OperationTypeID uint      `json:"operation_type_id"`
	ScheduledDate   time.Time `json:"scheduled_date"`
	LocationID      uint      `json:"location_id"`
	LocationDestID  uint      `json:"location_dest_id"`
	MoveType        string    `gorm:"default:direct" json:"move_type"`
	Origin          string    `json:"origin"`
}

// Orderpoint is a reordering rule (min/max stock policy).
type Orderpoint struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ProductID   uint    `gorm:"index" json:"product_id"`
	WarehouseID uint    `gorm:"index" json:"warehouse_id"`
	MinQty      float64 `json:"min_qty"`
	MaxQty      float64 `json:"max_qty"`
	Multiple    float64 `json:"multiple"`
	UomID       *uint   `json:"uom_id"`
}

// StockQuant is the on-hand quantity of a product in one location,
// optionally per lot.
type StockQuant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ProductID      uint       `gorm:"index" json:"product_id"`
	LocationID     uint       `gorm:"index" json:"location_id"`
	Quantity       float64    `json:"quantity"`
	Reserved       float64    `json:"reserved"`
	LotName        string     `json:"lot_name"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Company{},
		&User{},
		&UnitOfMeasure{},
		&Warehouse{},
		&StockLocation{},
		&Partner{},
		&ProductCategory{},
		&ProductTemplate{},
		&Product{},
		&SupplierPrice{},
		&Calendar{},
		&CalendarAttendance{},
		&CalendarLeave{},
		&Skill{},
		&Workcenter{},
		&WorkcenterSkill{},
		&RoutingStep{},
		&SecondaryWorkcenter{},
		&BOM{},
		&BOMLine{},
		&BOMByproduct{},
		&SalesOrder{},
		&SalesOrderLine{},
		&StockMove{},
		&PurchaseOrder{},
		&PurchaseOrderLine{},
		&ManufacturingOrder{},
		&WorkOrder{},
		&WorkOrderTimeLog{},
		&WorkOrderSecondaryAssignment{},
		&OperationType{},
		&Transfer{},
		&Orderpoint{},
		&StockQuant{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
