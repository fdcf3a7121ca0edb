// Package export builds the planning document from a snapshot of the
// transactional store. The document is streamed section by section in
// dependency order: every name referenced by a later section has been
// declared by an earlier one.
package export

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mode selects what a run transfers.
//
//	0: connection test, header only
//	1: full export
//	2: infrequently changing data (currently closed sales orders),
//	   meant for scheduled off-peak runs
const (
	ModeConnectionTest = 0
	ModeFull           = 1
	ModeInfrequent     = 2
)

// Options parameterize one export run.
type Options struct {
	Company  string
	Mode     int
	Timezone string
	Delta    float64
	Language string
	Version  string
	User     string
}

// Exporter generates planning documents.
type Exporter struct {
	st  store.Reader
	log zerolog.Logger
}

// New creates an Exporter reading from the given store.
func New(st store.Reader, log zerolog.Logger) *Exporter {
	return &Exporter{st: st, log: log}
}

// Run streams one complete document to w. The run is forward-only:
// restarting means building a fresh run from scratch.
func (e *Exporter) Run(ctx context.Context, w io.Writer, opts Options) error {
	r, err := newRun(ctx, e.st, e.log, opts)
	if err != nil {
		return err
	}
	return r.execute(ctx, w)
}

// run holds all per-run caches. Nothing in this package is shared
// between runs.
type run struct {
	st    store.Reader
	log   zerolog.Logger
	mode  int
	delta float64
	loc   *time.Location
	now   time.Time

	company             *models.Company
	companyID           uint
	poLead              float64
	mfgLead             float64
	respectReservations bool
	trackWorkOrders     bool
	trackExpiry         bool
	calendarName        string
	mfgLocation         string

	uom                   map[uint]uomEntry
	templates             map[uint]*models.ProductTemplate
	products              map[uint]*productRef
	templateProduct       map[uint]*productRef
	productsByTmpl        map[uint][]uint
	subcontractors        map[uint][]subcontractor
	categories            map[uint]models.ProductCategory
	warehouses            map[uint]string
	mapLocations          map[uint]string
	mapPartners           map[uint]string
	mapWorkcenters        map[uint]string
	workcenterByID        map[uint]models.Workcenter
	resourcesWithSpecific map[uint]string
	operationTypes        map[uint]models.OperationType
	subcontractMOPO       map[uint]string
}

// productRef is the per-run view of one exported item.
type productRef struct {
	Name       string
	TemplateID uint
	AttrValues []int64
	Code       string
}

type subcontractor struct {
	Name        string
	Delay       float64
	Priority    int
	SizeMinimum float64
}

func newRun(ctx context.Context, st store.Reader, log zerolog.Logger, opts Options) (*run, error) {
	r := &run{
		st:    st,
		log:   log,
		mode:  opts.Mode,
		delta: opts.Delta,
		now:   time.Now(),

		uom:             map[uint]uomEntry{},
		templates:       map[uint]*models.ProductTemplate{},
		products:        map[uint]*productRef{},
		templateProduct: map[uint]*productRef{},
		productsByTmpl:  map[uint][]uint{},
		subcontractors:  map[uint][]subcontractor{},
		categories:      map[uint]models.ProductCategory{},
		warehouses:      map[uint]string{},
		mapLocations:    map[uint]string{},
		mapPartners:     map[uint]string{},
		mapWorkcenters:  map[uint]string{},
		workcenterByID:  map[uint]models.Workcenter{},
		resourcesWithSpecific: map[uint]string{},
		operationTypes:  map[uint]models.OperationType{},
		subcontractMOPO: map[uint]string{},
	}
	if r.delta <= 0 {
		r.delta = 999
	}

	// Resolve the timezone: an explicit override wins, an invalid one
	// falls back to the connector user's own timezone.
	tz := opts.Timezone
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn().Str("timezone", tz).Msg("invalid timezone argument")
			tz = ""
		} else {
			r.loc = loc
		}
	}
	if r.loc == nil {
		if opts.User != "" {
			if u, err := st.UserByLogin(ctx, opts.User); err == nil && u.Timezone != "" {
				if loc, err := time.LoadLocation(u.Timezone); err == nil {
					r.loc = loc
				}
			}
		}
		if r.loc == nil {
			r.loc = time.UTC
		}
	}

	// Company settings drive lead times, netting and tracking options.
	company, err := st.CompanyByName(ctx, opts.Company)
	if err != nil {
		log.Warn().Str("company", opts.Company).Msg("company not found")
		r.mfgLocation = opts.Company
		return r, nil
	}
	r.company = company
	r.companyID = company.ID
	r.poLead = company.PurchaseLead
	r.mfgLead = company.ManufacturingLead
	r.respectReservations = company.RespectReservations
	r.trackWorkOrders = company.TrackWorkOrders
	r.trackExpiry = company.TrackExpiry
	if company.CalendarID != nil {
		cals, err := st.Calendars(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range cals {
			if c.ID == *company.CalendarID {
				r.calendarName = calendarName(c)
				break
			}
		}
	}
	// Resolved to the warehouse code once the warehouses are read.
	r.mfgLocation = opts.Company
	return r, nil
}

func calendarName(c models.Calendar) string {
	return c.Name + " " + uitoa(c.ID)
}

// execute writes the document sections in dependency order.
func (r *run) execute(ctx context.Context, w io.Writer) error {
	x := &xmlWriter{w: w}

	x.write("<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n")
	x.printf("<plan xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\" source=\"erp_%d\">\n", r.mode)
	if r.mode == ModeConnectionTest {
		x.write("connection ok")
		x.write("</plan>")
		return x.err
	}

	if err := r.loadUOM(ctx); err != nil {
		return err
	}

	x.printf("<current>%s</current>", r.now.Format(timeFormat))
	if err := r.exportUsers(ctx, x); err != nil {
		return err
	}

	type section struct {
		name     string
		modeFull bool
		fn       func(context.Context, *xmlWriter) error
	}
	sections := []section{
		{"calendars", true, r.exportCalendars},
		{"locations", false, r.exportLocations},
		{"operation types", false, r.loadOperationTypesSection},
		{"customers", false, r.exportCustomers},
		{"suppliers", true, r.exportSuppliers},
		{"skills", true, r.exportSkills},
		{"workcenters", true, r.exportWorkcenters},
		{"workcenter skills", true, r.exportWorkcenterSkills},
		{"item hierarchy", false, r.exportItemHierarchy},
		{"items", false, r.exportItems},
		{"bills of material", true, r.exportBOMs},
		{"sales orders", false, r.exportSalesOrders},
		{"purchase orders", true, r.exportPurchaseOrders},
		{"manufacturing orders", true, r.exportManufacturingOrders},
		{"reordering rules", true, r.exportOrderpoints},
		{"inventory", true, r.exportInventory},
	}
	for _, s := range sections {
		if s.modeFull && r.mode != ModeFull {
			continue
		}
		r.log.Debug().Str("section", s.name).Msg("exporting")
		if err := s.fn(ctx, x); err != nil {
			return errors.Wrapf(err, "failed to export %s", s.name)
		}
		if x.err != nil {
			return errors.Wrap(x.err, "failed to write document")
		}
	}

	x.write("</plan>\n")
	return x.err
}

// exportUsers publishes the planner accounts as a string property so
// the planning side can synchronize its user list.
func (r *run) exportUsers(ctx context.Context, x *xmlWriter) error {
	users, err := r.st.Users(ctx)
	if err != nil {
		return err
	}
	list := make([][2]string, 0, len(users))
	for _, u := range users {
		if !u.PlannerUser {
			continue
		}
		list = append(list, [2]string{u.Name, u.Login})
	}
	blob, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "failed to encode user list")
	}
	x.printf("<stringproperty name=\"users\" value=%s/>\n", quoteattr(string(blob)))
	return nil
}

// loadOperationTypesSection caches operation types after locations are
// known. It writes nothing.
func (r *run) loadOperationTypesSection(ctx context.Context, _ *xmlWriter) error {
	types, err := r.st.OperationTypes(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		r.operationTypes[t.ID] = t
	}
	return nil
}

func uitoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
