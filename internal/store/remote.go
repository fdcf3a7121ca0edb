package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"example.com/planbridge/internal/models"

	"github.com/pkg/errors"
)

// remotePageSize caps one fetch. The generating side streams, so large
// snapshots cost round trips rather than memory.
const remotePageSize = 5000

// Remote reads the transactional store over its JSON HTTP API. It only
// implements Reader: exports can run against a remote store, imports
// always write through the in-process adapter.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemote creates a remote read-only store client.
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type remotePage[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func fetchPaged[T any](ctx context.Context, r *Remote, entity string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("page_size", strconv.Itoa(remotePageSize))

	var all []T
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		u := fmt.Sprintf("%s/api/%s?%s", r.baseURL, entity, params.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build request")
		}
		req.Header.Set("Accept", "application/json")
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch %s page %d", entity, page)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.Errorf("fetching %s page %d: status %d", entity, page, resp.StatusCode)
		}

		var pg remotePage[T]
		err = json.NewDecoder(resp.Body).Decode(&pg)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s page %d", entity, page)
		}

		all = append(all, pg.Items...)
		if len(pg.Items) < remotePageSize {
			return all, nil
		}
	}
}

func fetchOne[T any](ctx context.Context, r *Remote, entity string, params url.Values) (*T, error) {
	items, err := fetchPaged[T](ctx, r, entity, params)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.Errorf("no %s matching %s", entity, params.Encode())
	}
	return &items[0], nil
}

func (r *Remote) CompanyByName(ctx context.Context, name string) (*models.Company, error) {
	return fetchOne[models.Company](ctx, r, "companies", url.Values{"name": {name}})
}

func (r *Remote) UserByLogin(ctx context.Context, login string) (*models.User, error) {
	return fetchOne[models.User](ctx, r, "users", url.Values{"login": {login}})
}

func (r *Remote) Users(ctx context.Context) ([]models.User, error) {
	return fetchPaged[models.User](ctx, r, "users", nil)
}

func (r *Remote) UnitsOfMeasure(ctx context.Context) ([]models.UnitOfMeasure, error) {
	return fetchPaged[models.UnitOfMeasure](ctx, r, "uoms", nil)
}

func (r *Remote) Warehouses(ctx context.Context) ([]models.Warehouse, error) {
	return fetchPaged[models.Warehouse](ctx, r, "warehouses", nil)
}

func (r *Remote) InternalLocations(ctx context.Context) ([]models.StockLocation, error) {
	return fetchPaged[models.StockLocation](ctx, r, "locations", url.Values{"usage": {"internal"}})
}

func (r *Remote) Partners(ctx context.Context) ([]models.Partner, error) {
	return fetchPaged[models.Partner](ctx, r, "partners", nil)
}

func (r *Remote) PartnerByID(ctx context.Context, id uint) (*models.Partner, error) {
	return fetchOne[models.Partner](ctx, r, "partners", url.Values{
		"id":       {strconv.FormatUint(uint64(id), 10)},
		"archived": {"1"},
	})
}

func (r *Remote) Categories(ctx context.Context) ([]models.ProductCategory, error) {
	return fetchPaged[models.ProductCategory](ctx, r, "categories", nil)
}

func (r *Remote) Templates(ctx context.Context) ([]models.ProductTemplate, error) {
	return fetchPaged[models.ProductTemplate](ctx, r, "templates", nil)
}

func (r *Remote) Products(ctx context.Context) ([]models.Product, error) {
	return fetchPaged[models.Product](ctx, r, "products", nil)
}

func (r *Remote) SupplierPrices(ctx context.Context) ([]models.SupplierPrice, error) {
	return fetchPaged[models.SupplierPrice](ctx, r, "supplier-prices", nil)
}

func (r *Remote) Calendars(ctx context.Context) ([]models.Calendar, error) {
	return fetchPaged[models.Calendar](ctx, r, "calendars", nil)
}

func (r *Remote) Attendances(ctx context.Context) ([]models.CalendarAttendance, error) {
	return fetchPaged[models.CalendarAttendance](ctx, r, "attendances", nil)
}

func (r *Remote) Leaves(ctx context.Context) ([]models.CalendarLeave, error) {
	return fetchPaged[models.CalendarLeave](ctx, r, "leaves", nil)
}

func (r *Remote) Workcenters(ctx context.Context) ([]models.Workcenter, error) {
	return fetchPaged[models.Workcenter](ctx, r, "workcenters", nil)
}

func (r *Remote) Skills(ctx context.Context) ([]models.Skill, error) {
	return fetchPaged[models.Skill](ctx, r, "skills", nil)
}

func (r *Remote) WorkcenterSkills(ctx context.Context) ([]models.WorkcenterSkill, error) {
	return fetchPaged[models.WorkcenterSkill](ctx, r, "workcenter-skills", nil)
}

func (r *Remote) RoutingSteps(ctx context.Context) ([]models.RoutingStep, error) {
	return fetchPaged[models.RoutingStep](ctx, r, "routing-steps", nil)
}

func (r *Remote) SecondaryWorkcenters(ctx context.Context) ([]models.SecondaryWorkcenter, error) {
	return fetchPaged[models.SecondaryWorkcenter](ctx, r, "secondary-workcenters", nil)
}

func (r *Remote) BOMs(ctx context.Context) ([]models.BOM, error) {
	return fetchPaged[models.BOM](ctx, r, "boms", nil)
}

func (r *Remote) BOMLines(ctx context.Context) ([]models.BOMLine, error) {
	return fetchPaged[models.BOMLine](ctx, r, "bom-lines", nil)
}

func (r *Remote) SalesOrderLines(ctx context.Context, since time.Time) ([]models.SalesOrderLine, error) {
	return fetchPaged[models.SalesOrderLine](ctx, r, "sales-order-lines", url.Values{
		"since": {since.UTC().Format(time.RFC3339)},
	})
}

func (r *Remote) OpenStockMoves(ctx context.Context) ([]models.StockMove, error) {
	return fetchPaged[models.StockMove](ctx, r, "stock-moves", url.Values{"open": {"1"}})
}

func (r *Remote) OpenPurchaseLines(ctx context.Context) ([]models.PurchaseOrderLine, error) {
	return fetchPaged[models.PurchaseOrderLine](ctx, r, "purchase-lines", url.Values{"open": {"1"}})
}

func (r *Remote) ActiveManufacturingOrders(ctx context.Context) ([]models.ManufacturingOrder, error) {
	return fetchPaged[models.ManufacturingOrder](ctx, r, "manufacturing-orders", url.Values{"active": {"1"}})
}

func (r *Remote) Orderpoints(ctx context.Context) ([]models.Orderpoint, error) {
	return fetchPaged[models.Orderpoint](ctx, r, "orderpoints", nil)
}

func (r *Remote) OnhandQuants(ctx context.Context) ([]models.StockQuant, error) {
	return fetchPaged[models.StockQuant](ctx, r, "quants", url.Values{"usage": {"internal"}})
}

func (r *Remote) OperationTypes(ctx context.Context) ([]models.OperationType, error) {
	return fetchPaged[models.OperationType](ctx, r, "operation-types", nil)
}
