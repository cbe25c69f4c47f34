package httpapi

import (
	"net/http"
	"time"

	"agroqc/internal/adapters/apierror"
	"agroqc/internal/core"
	"agroqc/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (a *API) listProducts(c *gin.Context) {
	products, err := a.svc.ListProducts(c.Request.Context())
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, products)
}

func (a *API) createProduct(c *gin.Context) {
	var p core.Product
	if !bind(c, &p) {
		return
	}
	created, res, err := a.svc.CreateProduct(c.Request.Context(), p)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusCreated, created, res)
}

func (a *API) getProduct(c *gin.Context) {
	p, err := a.svc.GetProduct(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, p)
}

type productPatch struct {
	Name        *string              `json:"name"`
	Variety     *string              `json:"variety"`
	Category    *string              `json:"category"`
	OriginField *string              `json:"origin_field"`
	Season      *string              `json:"season"`
	State       *domain.ProductState `json:"state"`
}

func (p productPatch) apply(dst *core.Product) error {
	setIf(&dst.Name, p.Name)
	setIf(&dst.Variety, p.Variety)
	setIf(&dst.Category, p.Category)
	setIf(&dst.OriginField, p.OriginField)
	setIf(&dst.Season, p.Season)
	setIf(&dst.State, p.State)
	return nil
}

func (a *API) updateProduct(c *gin.Context) {
	var patch productPatch
	if !bind(c, &patch) {
		return
	}
	updated, res, err := a.svc.UpdateProduct(c.Request.Context(), c.Param("code"), patch.apply)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusOK, updated, res)
}

func (a *API) deleteProduct(c *gin.Context) {
	if _, err := a.svc.DeleteProduct(c.Request.Context(), c.Param("code")); err != nil {
		apierror.Write(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) listBatches(c *gin.Context) {
	status, valid := enumQuery(c, domain.EntityBatch, "status", domain.BatchStatus.Valid)
	if !valid {
		return
	}
	batches, err := a.svc.ListBatches(c.Request.Context(), core.BatchFilter{
		Status:      status,
		ProductCode: c.Query("product"),
	})
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, batches)
}

func (a *API) listEligibleBatches(c *gin.Context) {
	batches, err := a.svc.ListShipmentEligibleBatches(c.Request.Context())
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, batches)
}

func (a *API) createBatch(c *gin.Context) {
	var b core.Batch
	if !bind(c, &b) {
		return
	}
	created, res, err := a.svc.CreateBatch(c.Request.Context(), b)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusCreated, created, res)
}

func (a *API) getBatch(c *gin.Context) {
	b, err := a.svc.GetBatch(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, b)
}

// batchPatch edits batch metadata. Status is not accepted.
type batchPatch struct {
	HarvestDate *time.Time       `json:"harvest_date"`
	QuantityKg  *decimal.Decimal `json:"quantity_kg"`
	OriginField *string          `json:"origin_field"`
	Owner       *string          `json:"owner"`
}

func (p batchPatch) apply(dst *core.Batch) error {
	setIf(&dst.HarvestDate, p.HarvestDate)
	setIf(&dst.QuantityKg, p.QuantityKg)
	setIf(&dst.OriginField, p.OriginField)
	setIf(&dst.Owner, p.Owner)
	return nil
}

func (a *API) updateBatch(c *gin.Context) {
	var patch batchPatch
	if !bind(c, &patch) {
		return
	}
	updated, res, err := a.svc.UpdateBatch(c.Request.Context(), c.Param("code"), patch.apply)
	if err != nil {
		apierror.Write(c, err)
		return
	}
	written(c, http.StatusOK, updated, res)
}

func (a *API) batchHistory(c *gin.Context) {
	records, err := a.svc.BatchHistory(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierror.Write(c, err)
		return
	}
	ok(c, records)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
